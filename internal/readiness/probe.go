package readiness

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Result classifies a single probe.
type Result int

const (
	NotReady Result = iota
	Ready
	TransportError
)

func (r Result) String() string {
	switch r {
	case Ready:
		return "ready"
	case TransportError:
		return "transport_error"
	default:
		return "not_ready"
	}
}

// Ready status range: anything that proves a server is answering counts,
// including 4xx.
const (
	minReadyStatus = 200
	maxReadyStatus = 500 // exclusive
)

// Classify maps an HTTP status code to a probe result.
func Classify(status int) Result {
	if status >= minReadyStatus && status < maxReadyStatus {
		return Ready
	}
	return NotReady
}

// DefaultProbeTimeout bounds one HTTP attempt.
const DefaultProbeTimeout = 2 * time.Second

// Prober performs one readiness check. It returns the classification, the
// HTTP status when one was received, and the transport error otherwise.
type Prober interface {
	Probe(ctx context.Context) (Result, int, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (Result, int, error)

func (f ProberFunc) Probe(ctx context.Context) (Result, int, error) { return f(ctx) }

// HTTPProber issues a GET against URL and discards the body.
type HTTPProber struct {
	URL     string
	Timeout time.Duration // per attempt; 0 uses DefaultProbeTimeout
	Client  *http.Client  // optional; redirects are not followed when nil
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{URL: url, Timeout: timeout}
}

func (p *HTTPProber) Probe(ctx context.Context) (Result, int, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return TransportError, 0, err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return TransportError, 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return Classify(resp.StatusCode), resp.StatusCode, nil
}

func (p *HTTPProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{
		// a redirect status already proves the server is up
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}
