package report

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/specialistvlad/gridci/internal/status"
)

// MetricsSink exports the event stream as Prometheus metrics.
type MetricsSink struct {
	InstanceOutcomes *prometheus.CounterVec
	AttemptDuration  *prometheus.HistogramVec
	Retries          *prometheus.CounterVec
	RunOutcomes      *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	ActiveInstances  prometheus.Gauge
}

// NewMetricsSink registers the collectors on reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	factory := promauto.With(reg)
	return &MetricsSink{
		InstanceOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gridci",
				Name:      "instance_outcomes_total",
				Help:      "Terminal outcomes of job instances",
			},
			[]string{"job", "outcome", "reason"},
		),
		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gridci",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of job instance attempts",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"job", "outcome"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gridci",
				Name:      "retries_total",
				Help:      "Failed attempts that were retried",
			},
			[]string{"job"},
		),
		RunOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gridci",
				Name:      "runs_total",
				Help:      "Finished pipeline runs by verdict",
			},
			[]string{"pipeline", "outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gridci",
				Name:      "run_duration_seconds",
				Help:      "Wall time of pipeline runs",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		ActiveInstances: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gridci",
				Name:      "active_instances",
				Help:      "Instances currently running an attempt",
			},
		),
	}
}

func (m *MetricsSink) InstanceEvent(_ context.Context, ev InstanceEvent) error {
	if ev.Outcome == status.Running {
		m.ActiveInstances.Inc()
		return nil
	}
	if ev.Attempt > 0 {
		m.ActiveInstances.Dec()
		m.AttemptDuration.WithLabelValues(ev.Job, ev.Outcome.String()).Observe(ev.Duration().Seconds())
	}
	if !ev.Final {
		m.Retries.WithLabelValues(ev.Job).Inc()
		return nil
	}
	m.InstanceOutcomes.WithLabelValues(ev.Job, ev.Outcome.String(), string(ev.Reason)).Inc()
	return nil
}

func (m *MetricsSink) RunFinished(_ context.Context, s RunSummary) error {
	m.RunOutcomes.WithLabelValues(s.Pipeline, s.Outcome.String()).Inc()
	m.RunDuration.Observe(s.End.Sub(s.Start).Seconds())
	return nil
}
