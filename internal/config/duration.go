package config

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// SecondsPerYear is the length of a solar year.
	SecondsPerYear = 31556925

	Year  = SecondsPerYear * time.Second
	Month = Year / 12
	Week  = 7 * Day
	Day   = 24 * time.Hour
)

var units = map[string]time.Duration{
	"y":  Year,
	"mo": Month,
	"w":  Week,
	"d":  Day,
	"h":  time.Hour,
	"m":  time.Minute,
	"s":  time.Second,
	"ms": time.Millisecond,
}

var (
	durationTerm = regexp.MustCompile(`(\d+(?:\.\d+)?)(mo|ms|y|w|d|h|m|s)`)
	durationFull = regexp.MustCompile(`^(?:\d+(?:\.\d+)?(?:mo|ms|y|w|d|h|m|s))+$`)
)

// Duration is a time.Duration that also understands years (y), months (mo),
// weeks (w) and days (d), e.g. "1y6mo" or "1d12h".
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseDuration parses a sequence of number+unit terms. "0" is zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "0" {
		return 0, nil
	}
	if !durationFull.MatchString(s) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var total float64
	for _, m := range durationTerm.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += n * float64(units[m[2]])
	}
	// float64(math.MaxInt64) rounds up to 2^63
	if total >= float64(math.MaxInt64) {
		return 0, fmt.Errorf("invalid duration %q: longer than %s", s, time.Duration(math.MaxInt64))
	}
	return time.Duration(total), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}
