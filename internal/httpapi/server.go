// Package httpapi serves metrics, health and scheduler status over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raoulx24/zam/internal/logging"
	"github.com/raoulx24/zam/internal/scheduler"
)

// Scheduler is the part of the running scheduler exposed over HTTP.
type Scheduler interface {
	Status() scheduler.Status
	Wake()
}

// Server is the HTTP side of a running zam.
type Server struct {
	addr   string
	sched  Scheduler
	gather prometheus.Gatherer
	log    logging.Logger
}

// New returns a server for addr. It does not listen yet.
func New(addr string, sched Scheduler, gather prometheus.Gatherer, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{addr: addr, sched: sched, gather: gather, log: log.With(logging.Component, "http")}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/wake", s.wake).Methods(http.MethodPost)
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logging.Event, "listen", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Debug("shutting down http server", logging.Event, "shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	if !s.sched.Status().Active {
		http.Error(w, "scheduler not running", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.sched.Status()); err != nil {
		s.log.Error("encoding status", logging.ErrorKey, err)
	}
}

func (s *Server) wake(w http.ResponseWriter, _ *http.Request) {
	s.sched.Wake()
	s.log.Info("scheduler woken over http", logging.Event, "wake")
	w.WriteHeader(http.StatusAccepted)
}
