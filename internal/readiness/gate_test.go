package readiness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the gate sleeps, so probes take zero time.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

var errRefused = errors.New("connection refused")

func TestClassify(t *testing.T) {
	for _, c := range []int{200, 201, 204, 301, 302, 304, 401, 403, 404, 499} {
		assert.Equal(t, Ready, Classify(c), "status %d", c)
	}
	for _, c := range []int{0, 100, 101, 199, 500, 502, 503, 599} {
		assert.Equal(t, NotReady, Classify(c), "status %d", c)
	}
}

func TestReadyJustBeforeDeadline(t *testing.T) {
	clk := newFakeClock()
	start := clk.Now()
	readyAt := 29500 * time.Millisecond
	var calls int
	g := &Gate{
		URL:      "http://localhost:8501",
		Timeout:  30 * time.Second,
		Interval: 500 * time.Millisecond,
		Clock:    clk,
		Prober: ProberFunc(func(context.Context) (Result, int, error) {
			calls++
			if clk.Now().Sub(start) < readyAt {
				return TransportError, 0, errRefused
			}
			return Ready, http.StatusOK, nil
		}),
	}
	var last Attempt
	g.OnProbe = func(a Attempt) { last = a }

	require.NoError(t, g.WaitUntilReady(context.Background()))
	assert.Equal(t, 60, calls, "59 failed probes then the ready one")
	assert.Equal(t, readyAt, last.Elapsed)
	assert.Equal(t, Ready, last.Result)
}

func TestTimeoutAfterDeadline(t *testing.T) {
	clk := newFakeClock()
	start := clk.Now()
	var probeTimes []time.Duration
	g := &Gate{
		URL:      "http://localhost:8501",
		Timeout:  30 * time.Second,
		Interval: 500 * time.Millisecond,
		Clock:    clk,
		Prober: ProberFunc(func(context.Context) (Result, int, error) {
			probeTimes = append(probeTimes, clk.Now().Sub(start))
			return TransportError, 0, errRefused
		}),
	}
	err := g.WaitUntilReady(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, errRefused), "last transport error should be wrapped")

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 61, te.Attempts)
	assert.Equal(t, 30*time.Second, probeTimes[len(probeTimes)-1], "last probe is the one at the deadline")
	assert.Len(t, probeTimes, 61, "no probes after the deadline")
}

func TestNotReadyStatusKeepsPolling(t *testing.T) {
	clk := newFakeClock()
	var calls int
	g := &Gate{
		Timeout:  2 * time.Second,
		Interval: 500 * time.Millisecond,
		Clock:    clk,
		Prober: ProberFunc(func(context.Context) (Result, int, error) {
			calls++
			return NotReady, http.StatusServiceUnavailable, nil
		}),
	}
	err := g.WaitUntilReady(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 5, calls)
}

func TestFirstProbeReadyReturnsImmediately(t *testing.T) {
	clk := newFakeClock()
	var calls int
	g := &Gate{Clock: clk, Prober: ProberFunc(func(context.Context) (Result, int, error) {
		calls++
		return Ready, http.StatusNotFound, nil
	})}
	require.NoError(t, g.WaitUntilReady(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	g := &Gate{
		Timeout:  time.Hour,
		Interval: time.Millisecond,
		Prober: ProberFunc(func(context.Context) (Result, int, error) {
			calls++
			if calls == 3 {
				cancel()
			}
			return TransportError, 0, errRefused
		}),
	}
	err := g.WaitUntilReady(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}

func TestHTTPProberStatusCodes(t *testing.T) {
	var code atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code.Load() == http.StatusFound {
			http.Redirect(w, r, "/elsewhere", http.StatusFound)
			return
		}
		w.WriteHeader(int(code.Load()))
		_, _ = w.Write([]byte("body is discarded"))
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.URL, time.Second)
	cases := []struct {
		code int
		want Result
	}{
		{200, Ready}, {204, Ready}, {302, Ready}, {404, Ready}, {499, Ready},
		{500, NotReady}, {503, NotReady},
	}
	for _, c := range cases {
		code.Store(int32(c.code))
		res, status, err := p.Probe(context.Background())
		require.NoError(t, err)
		assert.Equal(t, c.code, status)
		assert.Equal(t, c.want, res, "status %d", c.code)
	}
}

func TestHTTPProberTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res, _, err := NewHTTPProber(url, 200*time.Millisecond).Probe(context.Background())
	assert.Equal(t, TransportError, res)
	assert.Error(t, err)
}

func TestHTTPProberPerAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	res, _, err := NewHTTPProber(srv.URL, 50*time.Millisecond).Probe(context.Background())
	assert.Equal(t, TransportError, res)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGateAgainstRealServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewGate(srv.URL, 5*time.Second, 5*time.Millisecond, time.Second)
	require.NoError(t, g.WaitUntilReady(context.Background()))
	assert.Equal(t, int32(4), hits.Load())
}
