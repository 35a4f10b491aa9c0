// Package metrics holds the Prometheus collectors updated during imports.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportCollector bundles the import counters. A nil collector is valid
// and records nothing.
type ImportCollector struct {
	gatherer prometheus.Gatherer

	Records  prometheus.Counter
	Skipped  prometheus.Counter
	Entities *prometheus.CounterVec
	Warnings *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewImportCollector registers the import metrics against reg, defaulting
// to the global registry when nil
func NewImportCollector(reg prometheus.Registerer) (*ImportCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &ImportCollector{gatherer: gatherer}
	var err error
	if c.Records, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shpimport_records_total",
		Help: "Geometry records read, including skipped and failed ones.",
	})); err != nil {
		return nil, err
	}
	if c.Skipped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shpimport_records_skipped_total",
		Help: "Records that produced no entities (null shapes or record errors).",
	})); err != nil {
		return nil, err
	}
	if c.Entities, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shpimport_entities_total",
		Help: "Entities inserted into the drawing, labeled by entity kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.Warnings, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shpimport_warnings_total",
		Help: "Non-fatal import warnings, labeled by warning kind.",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if c.Duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "shpimport_duration_seconds",
		Help:    "Duration of whole imports in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})); err != nil {
		return nil, err
	}
	return c, nil
}

// register registers col, reusing an already registered collector of the
// same type
func register[C prometheus.Collector](reg prometheus.Registerer, col C) (C, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return col, fmt.Errorf("collector %T already registered with incompatible type", col)
		}
		return col, err
	}
	return col, nil
}

// Record counts one decoded record
func (c *ImportCollector) Record() {
	if c == nil {
		return
	}
	c.Records.Inc()
}

// Skip counts a record that produced no entities
func (c *ImportCollector) Skip() {
	if c == nil {
		return
	}
	c.Skipped.Inc()
}

// Entity counts an inserted entity of the given kind
func (c *ImportCollector) Entity(kind string) {
	if c == nil {
		return
	}
	c.Entities.WithLabelValues(kind).Inc()
}

// Warning counts a warning of the given kind
func (c *ImportCollector) Warning(kind string) {
	if c == nil {
		return
	}
	c.Warnings.WithLabelValues(kind).Inc()
}

// Observe records the duration of an import started at start
func (c *ImportCollector) Observe(start time.Time) {
	if c == nil {
		return
	}
	c.Duration.Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the gathered metrics in the Prometheus text format,
// for the node exporter textfile collector
func (c *ImportCollector) WriteTextfile(filename string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(filename, c.gatherer)
}
