package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Defaults for the readiness loop.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultInterval = 500 * time.Millisecond
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("readiness timeout")

// TimeoutError reports that no probe succeeded before the deadline.
// Last holds the final transport error, if the last attempt had one.
type TimeoutError struct {
	URL      string
	Timeout  time.Duration
	Attempts int
	Last     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out waiting for %s after %s (%d attempts)", e.URL, e.Timeout, e.Attempts)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Last }

// Clock abstracts time for the readiness loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Attempt describes one finished probe, passed to Gate.OnProbe.
type Attempt struct {
	N       int
	Elapsed time.Duration
	Result  Result
	Status  int
	Err     error
}

// Gate polls a Prober until it reports Ready or Timeout elapses.
// Probes never overlap: each attempt finishes before the interval starts.
type Gate struct {
	Prober   Prober
	URL      string        // used in errors and logs
	Timeout  time.Duration // measured from WaitUntilReady entry
	Interval time.Duration
	Clock    Clock
	OnProbe  func(Attempt) // optional observer, called after every attempt
}

// NewGate returns a Gate probing url over HTTP with the given limits.
// Zero values fall back to the package defaults.
func NewGate(url string, timeout, interval, probeTimeout time.Duration) *Gate {
	return &Gate{
		Prober:   NewHTTPProber(url, probeTimeout),
		URL:      url,
		Timeout:  timeout,
		Interval: interval,
	}
}

// WaitUntilReady returns nil at the first Ready probe. When a failed probe
// finishes at or after the deadline it returns a *TimeoutError and issues no
// further probes. Cancelling ctx aborts the wait with ctx.Err().
func (g *Gate) WaitUntilReady(ctx context.Context) error {
	clock := g.Clock
	if clock == nil {
		clock = RealClock
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := g.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := clock.Now()
	slog.Info("Waiting for server", "url", g.URL, "timeout", timeout, "interval", interval)
	var lastErr error
	for n := 1; ; n++ {
		res, status, err := g.Prober.Probe(ctx)
		elapsed := clock.Now().Sub(start)
		if g.OnProbe != nil {
			g.OnProbe(Attempt{N: n, Elapsed: elapsed, Result: res, Status: status, Err: err})
		}
		if res == Ready {
			slog.Info("Server ready", "url", g.URL, "status", status, "attempts", n, "elapsed", elapsed)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = err
		slog.Debug("Server not ready", "url", g.URL, "attempt", n, "result", res.String(), "status", status, "error", err)
		if elapsed >= timeout {
			return &TimeoutError{URL: g.URL, Timeout: timeout, Attempts: n, Last: lastErr}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
}
