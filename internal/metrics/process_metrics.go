package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMetrics holds CPU and memory usage of the server process.
type ProcessMetrics struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	NumThreads int32     `json:"num_threads"`
	Children   int       `json:"children"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sample reads current usage for pid.
func Sample(pid int32) (*ProcessMetrics, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to create process handle: %w", err)
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		slog.Debug("Failed to get CPU percent", "pid", pid, "error", err)
		cpuPercent = 0
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}
	numThreads, err := proc.NumThreads()
	if err != nil {
		slog.Debug("Failed to get thread count", "pid", pid, "error", err)
		numThreads = 0
	}
	children, _ := proc.Children()
	return &ProcessMetrics{
		PID:        pid,
		CPUPercent: cpuPercent,
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		MemoryRSS:  memInfo.RSS,
		NumThreads: numThreads,
		Children:   len(children),
		Timestamp:  time.Now(),
	}, nil
}

// ProcessCollector samples the current server process at scrape time.
// pid returns 0 when no server is running.
type ProcessCollector struct {
	pid func() int

	cpu     *prometheus.Desc
	memory  *prometheus.Desc
	threads *prometheus.Desc
}

func NewProcessCollector(pid func() int) *ProcessCollector {
	return &ProcessCollector{
		pid:     pid,
		cpu:     prometheus.NewDesc("deskgate_server_cpu_percent", "CPU usage of the server process.", nil, nil),
		memory:  prometheus.NewDesc("deskgate_server_memory_bytes", "Resident memory of the server process.", nil, nil),
		threads: prometheus.NewDesc("deskgate_server_threads", "Thread count of the server process.", nil, nil),
	}
}

func (c *ProcessCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpu
	ch <- c.memory
	ch <- c.threads
}

func (c *ProcessCollector) Collect(ch chan<- prometheus.Metric) {
	pid := c.pid()
	if pid <= 0 {
		return
	}
	m, err := Sample(int32(pid))
	if err != nil {
		slog.Debug("Failed to collect metrics for server", "pid", pid, "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, m.CPUPercent)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(m.MemoryRSS))
	ch <- prometheus.MustNewConstMetric(c.threads, prometheus.GaugeValue, float64(m.NumThreads))
}
