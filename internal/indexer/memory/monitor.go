// Package memory decides when the indexer must spill its in-memory
// vocabulary to disk. The decision is based on sampled process memory
// relative to total system memory, not on exact accounting.
package memory

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Checker reports whether the indexing loop should flush now.
type Checker interface {
	HasReachedThreshold() bool
}

// Usage is one memory sample.
type Usage struct {
	Used  uint64
	Total uint64
}

func (u Usage) Ratio() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Used) / float64(u.Total)
}

// Sampler reads the current memory usage.
type Sampler func() (Usage, error)

// Monitor samples memory every stride calls to HasReachedThreshold and
// returns false on all other calls.
type Monitor struct {
	threshold float64
	stride    int
	calls     int
	sample    Sampler
	gauge     prometheus.Gauge
	logger    *slog.Logger
	warned    bool
}

type Option func(*Monitor)

// WithSampler replaces the platform sampler.
func WithSampler(s Sampler) Option {
	return func(m *Monitor) { m.sample = s }
}

// WithGauge publishes every sampled ratio to g.
func WithGauge(g prometheus.Gauge) Option {
	return func(m *Monitor) { m.gauge = g }
}

func NewMonitor(threshold float64, stride int, opts ...Option) (*Monitor, error) {
	if threshold < 0 || threshold > 1 {
		return nil, apperrors.Configf("memory threshold %v outside [0,1]", threshold)
	}
	if stride < 1 {
		return nil, apperrors.Configf("memory sample stride must be positive, got %d", stride)
	}
	m := &Monitor{
		threshold: threshold,
		stride:    stride,
		sample:    SampleProcess,
		logger:    slog.Default().With("component", "memory-monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Monitor) HasReachedThreshold() bool {
	m.calls++
	if m.calls%m.stride != 0 {
		return false
	}
	usage, err := m.sample()
	if err != nil {
		if !m.warned {
			m.logger.Warn("memory sampling failed, flushing only at end of corpus", "error", err)
			m.warned = true
		}
		return false
	}
	ratio := usage.Ratio()
	if m.gauge != nil {
		m.gauge.Set(ratio)
	}
	if ratio > m.threshold {
		m.logger.Debug("memory threshold reached",
			"used_bytes", usage.Used,
			"total_bytes", usage.Total,
			"ratio", ratio,
			"threshold", m.threshold,
		)
		return true
	}
	return false
}
