package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK     atomic.Bool
	serverPID atomic.Pointer[func() int]

	probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskgate",
			Subsystem: "readiness",
			Name:      "probe_total",
			Help:      "Readiness probes by result.",
		}, []string{"result"},
	)
	readinessWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "deskgate",
			Subsystem: "readiness",
			Name:      "wait_seconds",
			Help:      "Time from the first probe until the server was ready or the wait gave up.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskgate",
			Subsystem: "launch",
			Name:      "total",
			Help:      "Launch attempts by outcome (ready, timeout, launch_failed, canceled).",
		}, []string{"outcome"},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskgate",
			Subsystem: "process",
			Name:      "exit_total",
			Help:      "Server process exits; expected=false means it died on its own.",
		}, []string{"expected"},
	)
	serverProcess = NewProcessCollector(func() int {
		if f := serverPID.Load(); f != nil {
			return (*f)()
		}
		return 0
	})
	terminations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskgate",
			Subsystem: "process",
			Name:      "terminate_total",
			Help:      "Terminate signals actually sent to the server process.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probes, readinessWait, launches, exits, terminations, serverProcess}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// SetServerPID sets where the server process gauges find the current PID.
// f returns 0 while no server is running.
func SetServerPID(f func() int) { serverPID.Store(&f) }

// Handler returns an http.Handler serving the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register has been called.

func IncProbe(result string) {
	if regOK.Load() {
		probes.WithLabelValues(result).Inc()
	}
}

func ObserveReadinessWait(seconds float64) {
	if regOK.Load() {
		readinessWait.Observe(seconds)
	}
}

func IncLaunch(outcome string) {
	if regOK.Load() {
		launches.WithLabelValues(outcome).Inc()
	}
}

func IncExit(expected bool) {
	if regOK.Load() {
		label := "false"
		if expected {
			label = "true"
		}
		exits.WithLabelValues(label).Inc()
	}
}

func IncTerminate() {
	if regOK.Load() {
		terminations.Inc()
	}
}
