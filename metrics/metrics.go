// Package metrics records the resolution engine's operational counters on a
// go-metrics registry, optionally exported to InfluxDB.
package metrics

import (
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/vrischmann/go-metrics-influxdb"
)

// Config controls metrics collection and export.
type Config struct {
	Influx InfluxConfig `mapstructure:"influx"`
}

type InfluxConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Database        string `mapstructure:"database"`
	Measurement     string `mapstructure:"measurement"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

// Engine holds every metric the engine emits.
type Engine struct {
	MetricsRegistry metrics.Registry

	RequestMeter   metrics.Meter
	ErrorMeter     metrics.Meter
	NoFillMeter    metrics.Meter
	RequestTimer   metrics.Timer
	CacheHitMeter  metrics.Meter
	CacheMissMeter metrics.Meter
	HopHistogram   metrics.Histogram

	FreqRejectMeter   metrics.Meter
	BudgetRejectMeter metrics.Meter
}

// New registers the full metric set on the given registry.
func New(registry metrics.Registry) *Engine {
	return &Engine{
		MetricsRegistry: registry,
		RequestMeter:    metrics.GetOrRegisterMeter("requests", registry),
		ErrorMeter:      metrics.GetOrRegisterMeter("request_errors", registry),
		NoFillMeter:     metrics.GetOrRegisterMeter("no_fills", registry),
		RequestTimer:    metrics.GetOrRegisterTimer("request_time", registry),
		CacheHitMeter:   metrics.GetOrRegisterMeter("cache_hits", registry),
		CacheMissMeter:  metrics.GetOrRegisterMeter("cache_misses", registry),
		HopHistogram: metrics.GetOrRegisterHistogram("resolution_hops", registry,
			metrics.NewExpDecaySample(1028, 0.015)),
		FreqRejectMeter:   metrics.GetOrRegisterMeter("frequency_rejects", registry),
		BudgetRejectMeter: metrics.GetOrRegisterMeter("budget_rejects", registry),
	}
}

// NewBlank builds an Engine where every metric is a no-op, for tests and
// hosts that run without metrics.
func NewBlank() *Engine {
	return &Engine{
		MetricsRegistry:   metrics.NewRegistry(),
		RequestMeter:      &metrics.NilMeter{},
		ErrorMeter:        &metrics.NilMeter{},
		NoFillMeter:       &metrics.NilMeter{},
		RequestTimer:      &metrics.NilTimer{},
		CacheHitMeter:     &metrics.NilMeter{},
		CacheMissMeter:    &metrics.NilMeter{},
		HopHistogram:      metrics.NilHistogram{},
		FreqRejectMeter:   &metrics.NilMeter{},
		BudgetRejectMeter: &metrics.NilMeter{},
	}
}

// RecordResolution accounts one served resolution.
func (e *Engine) RecordResolution(elapsed time.Duration, hops int, cached bool) {
	e.RequestMeter.Mark(1)
	e.RequestTimer.Update(elapsed)
	e.HopHistogram.Update(int64(hops))
	if cached {
		e.CacheHitMeter.Mark(1)
	} else {
		e.CacheMissMeter.Mark(1)
	}
}

// RecordError accounts one failed resolution.
func (e *Engine) RecordError() {
	e.RequestMeter.Mark(1)
	e.ErrorMeter.Mark(1)
}

// RecordNoFill accounts one policy rejection; which meter is marked depends
// on the policy that refused.
func (e *Engine) RecordNoFill(frequency bool) {
	e.NoFillMeter.Mark(1)
	if frequency {
		e.FreqRejectMeter.Mark(1)
	} else {
		e.BudgetRejectMeter.Mark(1)
	}
}

// Export begins posting all metrics to InfluxDB. This blocks indefinitely,
// so it should be run inside a goroutine.
func (e *Engine) Export(cfg InfluxConfig) {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	influxdb.InfluxDB(
		e.MetricsRegistry,
		interval,
		cfg.Host,
		cfg.Database,
		cfg.Measurement,
		cfg.Username,
		cfg.Password,
		false,
	)
}
