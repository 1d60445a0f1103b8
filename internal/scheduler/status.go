package scheduler

import "time"

// TaskStatus is a snapshot of one task's scheduling state.
type TaskStatus struct {
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	NextError string     `json:"next_error,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastRunID string     `json:"last_run_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
	Failures  int        `json:"failures"`
	Running   bool       `json:"running"`
}

// Status is what the scheduler reports about itself.
type Status struct {
	Active bool         `json:"active"`
	Tasks  []TaskStatus `json:"tasks"`
}

// Status returns a copy of the current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Status{Active: s.status.Active, Tasks: make([]TaskStatus, len(s.status.Tasks))}
	copy(out.Tasks, s.status.Tasks)
	return out
}

func (s *Scheduler) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.status.Tasks {
		ts := &s.status.Tasks[i]
		ts.NextRun = nil
		if at, ok := s.next[i].Time(); ok {
			ts.NextRun = &at
		}
		ts.NextError = ""
		if err := s.nextErr[i]; err != nil {
			ts.NextError = err.Error()
		}
	}
}

// setRunning marks task i as running; i < 0 flags the scheduler itself.
func (s *Scheduler) setRunning(i int, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 {
		s.status.Active = running
		return
	}
	s.status.Tasks[i].Running = running
}

func (s *Scheduler) record(i int, runID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[i]
	ts := &s.status.Tasks[i]
	last := h.LastRun
	ts.LastRun = &last
	ts.LastRunID = runID
	ts.Runs = h.Runs
	ts.LastError = ""
	if err != nil {
		ts.LastError = err.Error()
		ts.Failures++
	}
}
