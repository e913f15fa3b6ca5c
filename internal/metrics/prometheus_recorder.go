package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	spawns          *prom.CounterVec
	processDuration *prom.HistogramVec
	builderResults  *prom.CounterVec
	inFlight        prom.Gauge
	buildDuration   prom.Histogram
	buildOutcome    *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.spawns = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dmbuild",
			Name:      "process_spawns_total",
			Help:      "External tool processes started, by builder class",
		}, []string{"builder"})
		pr.processDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "dmbuild",
			Name:      "process_duration_seconds",
			Help:      "Wall time of external tool processes",
			Buckets:   prom.DefBuckets,
		}, []string{"builder"})
		pr.builderResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dmbuild",
			Name:      "builder_results_total",
			Help:      "Builder results by outcome",
		}, []string{"builder", "result"})
		pr.inFlight = prom.NewGauge(prom.GaugeOpts{
			Namespace: "dmbuild",
			Name:      "processes_in_flight",
			Help:      "External tool processes currently running",
		})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "dmbuild",
			Name:      "build_duration_seconds",
			Help:      "Total duration of a build pass",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "dmbuild",
			Name:      "build_outcomes_total",
			Help:      "Build passes by final status",
		}, []string{"outcome"})
		reg.MustRegister(pr.spawns, pr.processDuration, pr.builderResults, pr.inFlight, pr.buildDuration, pr.buildOutcome)
	})
	return pr
}

func (p *PrometheusRecorder) IncProcessSpawn(builder string) {
	if p == nil || p.spawns == nil {
		return
	}
	p.spawns.WithLabelValues(builder).Inc()
}

func (p *PrometheusRecorder) ObserveProcessDuration(builder string, d time.Duration) {
	if p == nil || p.processDuration == nil {
		return
	}
	p.processDuration.WithLabelValues(builder).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuilderResult(builder string, result ResultLabel) {
	if p == nil || p.builderResults == nil {
		return
	}
	p.builderResults.WithLabelValues(builder, string(result)).Inc()
}

func (p *PrometheusRecorder) SetProcessesInFlight(n int) {
	if p == nil || p.inFlight == nil {
		return
	}
	p.inFlight.Set(float64(n))
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}
