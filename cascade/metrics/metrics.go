// Package metrics exposes cascade progress as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridsim/blackout/cascade"
)

// Collector bundles the cascade Prometheus metrics. It implements cascade.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	Steps           *prometheus.CounterVec
	BranchesRemoved *prometheus.CounterVec
	Islands         *prometheus.GaugeVec
	Runs            *prometheus.CounterVec
}

// NewCollector registers the cascade metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_steps_total",
		Help: "Total number of completed cascade steps, labeled by cascade kind.",
	}, []string{"kind"}), "cascade_steps_total")
	if err != nil {
		return nil, err
	}
	removed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_branches_removed_total",
		Help: "Total number of branches taken out of service, labeled by cascade kind and removal criteria.",
	}, []string{"kind", "criteria"}), "cascade_branches_removed_total")
	if err != nil {
		return nil, err
	}
	islands, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cascade_islands",
		Help: "Island count after the most recent cascade step.",
	}, []string{"kind"}), "cascade_islands")
	if err != nil {
		return nil, err
	}
	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_runs_total",
		Help: "Total number of finished cascade runs and steps, labeled by kind and outcome.",
	}, []string{"kind", "outcome"}), "cascade_runs_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Steps:           steps,
		BranchesRemoved: removed,
		Islands:         islands,
		Runs:            runs,
	}, nil
}

// StepCompleted records one cascade step.
func (c *Collector) StepCompleted(kind cascade.Kind, ev cascade.Event) {
	if c == nil {
		return
	}
	k := kind.String()
	c.Steps.WithLabelValues(k).Inc()
	c.BranchesRemoved.WithLabelValues(k, ev.Criteria).Add(float64(len(ev.Removed)))
	c.Islands.WithLabelValues(k).Set(float64(ev.Islands))
}

// RunFinished records a finished run or step.
func (c *Collector) RunFinished(kind cascade.Kind, outcome cascade.Outcome) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(kind.String(), string(outcome)).Inc()
}

// WriteTextfile writes every gathered metric to path in the Prometheus text
// format, for pickup by a node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
