package deskgate

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/loykin/deskgate/internal/app"
	cfg "github.com/loykin/deskgate/internal/config"
	"github.com/loykin/deskgate/internal/history"
	"github.com/loykin/deskgate/internal/metrics"
	"github.com/loykin/deskgate/internal/process"
	"github.com/loykin/deskgate/internal/readiness"
	"github.com/loykin/deskgate/internal/window"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type App = app.App

type Options = app.Options

type LaunchError = process.LaunchError

type TimeoutError = readiness.TimeoutError

type HistorySink = history.Sink

type HistoryEvent = history.Event

type Presenter = window.Presenter

// ErrTimeout matches any readiness timeout with errors.Is.
var ErrTimeout = readiness.ErrTimeout

// LoadConfig reads the TOML file at path (optional), DESKGATE_* environment
// variables and any changed flags in fs (may be nil).
func LoadConfig(path string, fs *pflag.FlagSet) (*Config, error) { return cfg.Load(path, fs) }

// DefaultConfig returns the built-in defaults.
func DefaultConfig() (*Config, error) { return cfg.Default() }

// New builds a launcher for c.
func New(c *Config, opts Options) (*App, error) { return app.New(c, opts) }

// NewPresenter returns the window presenter for mode: app, browser or none.
func NewPresenter(mode string) (Presenter, error) { return window.New(mode, "") }

// Run builds a launcher for c and runs it until the window closes or ctx ends.
func Run(ctx context.Context, c *Config) error {
	a, err := app.New(c, app.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return a.Run(ctx)
}

// WaitUntilReady polls url with the standard readiness policy.
func WaitUntilReady(ctx context.Context, url string, timeout, interval time.Duration) error {
	return readiness.NewGate(url, timeout, interval, readiness.DefaultProbeTimeout).WaitUntilReady(ctx)
}

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
