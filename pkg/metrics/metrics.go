// Package metrics exposes bus and clock stats as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/cadence/core/clock"
	"github.com/dmitrymomot/cadence/core/signal"
)

// BusStatsFunc supplies a bus stats snapshot, typically bus.Stats.
type BusStatsFunc func() signal.BusStats

// ClockStatsFunc supplies a clock stats snapshot, typically clk.Stats.
type ClockStatsFunc func() clock.TickStats

// busCollector translates BusStats snapshots into Prometheus metrics on
// every scrape.
type busCollector struct {
	stats BusStatsFunc

	emitted     *prometheus.Desc
	handled     *prometheus.Desc
	errors      *prometheus.Desc
	handlers    *prometheus.Desc
	anyHandlers *prometheus.Desc
	middleware  *prometheus.Desc
}

// NewBusCollector creates a collector over a bus stats snapshot function.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewBusCollector(bus.Stats))
func NewBusCollector(stats BusStatsFunc) prometheus.Collector {
	return &busCollector{
		stats: stats,
		emitted: prometheus.NewDesc(
			"cadence_bus_signals_emitted_total",
			"Total number of signals emitted on the bus.",
			nil, nil,
		),
		handled: prometheus.NewDesc(
			"cadence_bus_signals_handled_total",
			"Total number of successful handler invocations.",
			nil, nil,
		),
		errors: prometheus.NewDesc(
			"cadence_bus_handler_errors_total",
			"Total number of failed handler invocations.",
			nil, nil,
		),
		handlers: prometheus.NewDesc(
			"cadence_bus_handlers",
			"Number of registered typed handlers.",
			nil, nil,
		),
		anyHandlers: prometheus.NewDesc(
			"cadence_bus_any_handlers",
			"Number of registered any-handlers.",
			nil, nil,
		),
		middleware: prometheus.NewDesc(
			"cadence_bus_middleware",
			"Number of registered middleware.",
			nil, nil,
		),
	}
}

func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.emitted
	ch <- c.handled
	ch <- c.errors
	ch <- c.handlers
	ch <- c.anyHandlers
	ch <- c.middleware
}

func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.emitted, prometheus.CounterValue, float64(s.Emitted))
	ch <- prometheus.MustNewConstMetric(c.handled, prometheus.CounterValue, float64(s.Handled))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors))
	ch <- prometheus.MustNewConstMetric(c.handlers, prometheus.GaugeValue, float64(s.Handlers))
	ch <- prometheus.MustNewConstMetric(c.anyHandlers, prometheus.GaugeValue, float64(s.AnyHandlers))
	ch <- prometheus.MustNewConstMetric(c.middleware, prometheus.GaugeValue, float64(s.Middleware))
}

// clockCollector translates TickStats snapshots into Prometheus metrics,
// labelled by clock name so multiple clocks share one registry.
type clockCollector struct {
	name  string
	stats ClockStatsFunc

	ticks      *prometheus.Desc
	dropped    *prometheus.Desc
	errors     *prometheus.Desc
	maxHandler *prometheus.Desc
	avgHandler *prometheus.Desc
	avgDrift   *prometheus.Desc
}

// NewClockCollector creates a collector over a clock stats snapshot
// function. The name distinguishes clocks within a registry.
func NewClockCollector(name string, stats ClockStatsFunc) prometheus.Collector {
	labels := prometheus.Labels{"clock": name}
	return &clockCollector{
		name:  name,
		stats: stats,
		ticks: prometheus.NewDesc(
			"cadence_clock_ticks_total",
			"Total number of ticks fired in the current epoch.",
			nil, labels,
		),
		dropped: prometheus.NewDesc(
			"cadence_clock_dropped_ticks_total",
			"Total number of ticks dropped by back-pressure in the current epoch.",
			nil, labels,
		),
		errors: prometheus.NewDesc(
			"cadence_clock_handler_errors_total",
			"Total number of failed tick handler invocations in the current epoch.",
			nil, labels,
		),
		maxHandler: prometheus.NewDesc(
			"cadence_clock_handler_max_seconds",
			"Longest tick handler run in the current epoch.",
			nil, labels,
		),
		avgHandler: prometheus.NewDesc(
			"cadence_clock_handler_avg_seconds",
			"Mean tick handler run in the current epoch.",
			nil, labels,
		),
		avgDrift: prometheus.NewDesc(
			"cadence_clock_drift_avg_seconds",
			"Mean absolute scheduling drift in the current epoch.",
			nil, labels,
		),
	}
}

func (c *clockCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.dropped
	ch <- c.errors
	ch <- c.maxHandler
	ch <- c.avgHandler
	ch <- c.avgDrift
}

func (c *clockCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(s.TickCount))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.DroppedTicks))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors))
	ch <- prometheus.MustNewConstMetric(c.maxHandler, prometheus.GaugeValue, s.MaxHandler.Seconds())
	ch <- prometheus.MustNewConstMetric(c.avgHandler, prometheus.GaugeValue, s.AvgHandler.Seconds())
	ch <- prometheus.MustNewConstMetric(c.avgDrift, prometheus.GaugeValue, s.AvgDrift.Seconds())
}

// NewRegistry creates a registry pre-loaded with the Go runtime and
// process collectors plus the given cadence collectors.
func NewRegistry(cs ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(cs...)
	return reg
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
