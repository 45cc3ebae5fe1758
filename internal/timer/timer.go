// Package timer measures wall-clock time spent on a run.
package timer

import "time"

// Stopwatch measures elapsed time from Start. Elapsed and Stop return 0 when
// the stopwatch is not running. The zero value is a stopped stopwatch on the
// wall clock.
type Stopwatch struct {
	now     func() time.Time
	start   time.Time
	running bool
}

// New returns a stopped stopwatch.
func New() *Stopwatch {
	return &Stopwatch{now: time.Now}
}

func (s *Stopwatch) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Stopwatch) Start() {
	s.start = s.clock()
	s.running = true
}

// Elapsed returns the time since Start without stopping.
func (s *Stopwatch) Elapsed() time.Duration {
	if !s.running {
		return 0
	}
	return s.clock().Sub(s.start)
}

// Stop returns the time since Start and stops the stopwatch.
func (s *Stopwatch) Stop() time.Duration {
	if !s.running {
		return 0
	}
	s.running = false
	return s.clock().Sub(s.start)
}

// Reset restarts the measurement from now, running or not.
func (s *Stopwatch) Reset() {
	s.Start()
}

// Running reports whether the stopwatch is running.
func (s *Stopwatch) Running() bool {
	return s.running
}
