// Package metrics exports run and step counters in the Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hairizuan-noorazman/ui-harness/scenario"
	"github.com/hairizuan-noorazman/ui-harness/step"
	"github.com/hairizuan-noorazman/ui-harness/storage"
)

const namespace = "uiharness"

// Metrics collects harness activity. It implements scenario.Observer.
type Metrics struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	artifacts    *prometheus.CounterVec

	mu        sync.Mutex
	scenarios map[string]string
}

var _ scenario.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		scenarios: map[string]string{},
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps by scenario, action and status.",
		}, []string{"scenario", "action", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent executing a step.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"action"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished scenario runs by status.",
		}, []string{"scenario", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a scenario run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"scenario"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Failed steps by failure kind.",
		}, []string{"scenario", "kind"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_total",
			Help:      "Stored artifacts by kind.",
		}, []string{"kind"}),
	}

	collectors := []prometheus.Collector{m.steps, m.stepDuration, m.runs, m.runDuration, m.failures, m.artifacts}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current values for the node-exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// RunStarted remembers the scenario name for the run's step labels.
func (m *Metrics) RunStarted(ctx context.Context, run scenario.RunInfo) {
	m.mu.Lock()
	m.scenarios[run.ID] = run.Scenario
	m.mu.Unlock()
}

// StepFinished counts the step.
func (m *Metrics) StepFinished(ctx context.Context, runID string, res step.Result) {
	name := m.scenario(runID)
	m.steps.WithLabelValues(name, res.Action, string(res.Status)).Inc()
	if res.Status == step.StatusSkipped && res.Kind == nil {
		return
	}
	m.stepDuration.WithLabelValues(res.Action).Observe(res.Duration.Seconds())
	if res.Kind != nil {
		m.failures.WithLabelValues(name, res.KindName()).Inc()
	}
}

// ArtifactSaved counts the artifact.
func (m *Metrics) ArtifactSaved(ctx context.Context, runID string, art storage.Artifact) {
	m.artifacts.WithLabelValues(art.Kind).Inc()
}

// RunFinished counts the run.
func (m *Metrics) RunFinished(ctx context.Context, rep *scenario.Report) {
	m.runs.WithLabelValues(rep.Scenario, string(rep.Status)).Inc()
	m.runDuration.WithLabelValues(rep.Scenario).Observe(rep.Duration.Seconds())

	m.mu.Lock()
	delete(m.scenarios, rep.RunID)
	m.mu.Unlock()
}

func (m *Metrics) scenario(runID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name, ok := m.scenarios[runID]; ok {
		return name
	}
	return "unknown"
}
