package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// historyTimeout bounds one read of the run history during a scrape.
const historyTimeout = 5 * time.Second

// LastRun is the most recent completed run of a scenario.
type LastRun struct {
	Scenario    string
	Passed      bool
	CompletedAt time.Time
	Duration    time.Duration
}

// HistorySource reads the latest run of every scenario.
type HistorySource func(ctx context.Context) ([]LastRun, error)

type historyCollector struct {
	src HistorySource

	success   *prometheus.Desc
	timestamp *prometheus.Desc
	duration  *prometheus.Desc
	up        *prometheus.Desc
}

func newHistoryCollector(src HistorySource) *historyCollector {
	return &historyCollector{
		src: src,
		success: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "last_run", "success"),
			"Whether the latest run of the scenario passed (1) or not (0).",
			[]string{"scenario"}, nil,
		),
		timestamp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "last_run", "timestamp_seconds"),
			"Completion time of the latest run of the scenario.",
			[]string{"scenario"}, nil,
		),
		duration: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "last_run", "duration_seconds"),
			"Wall time of the latest run of the scenario.",
			[]string{"scenario"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "history", "up"),
			"Whether the run history could be read.",
			nil, nil,
		),
	}
}

func (c *historyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.success
	ch <- c.timestamp
	ch <- c.duration
	ch <- c.up
}

func (c *historyCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	runs, err := c.src(ctx)
	if err != nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	for _, r := range runs {
		success := 0.0
		if r.Passed {
			success = 1
		}
		ch <- prometheus.MustNewConstMetric(c.success, prometheus.GaugeValue, success, r.Scenario)
		ch <- prometheus.MustNewConstMetric(c.timestamp, prometheus.GaugeValue, float64(r.CompletedAt.Unix()), r.Scenario)
		ch <- prometheus.MustNewConstMetric(c.duration, prometheus.GaugeValue, r.Duration.Seconds(), r.Scenario)
	}
}

// WatchHistory exports the outcome of the latest run of every scenario, read
// from src on each scrape.
func (m *Metrics) WatchHistory(src HistorySource) error {
	if err := m.registry.Register(newHistoryCollector(src)); err != nil {
		return fmt.Errorf("register history collector: %w", err)
	}
	return nil
}
