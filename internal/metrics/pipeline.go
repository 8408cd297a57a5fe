package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes del pipeline.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeError    = "error"
	OutcomeLimited  = "rate_limited"
)

// Pipeline agrupa las metricas del pipeline de orquestacion.
// Todos los metodos aceptan receptor nil para que los tests no necesiten registry.
type Pipeline struct {
	Requests     *prometheus.CounterVec
	StageLatency *prometheus.HistogramVec
	FailOpen     *prometheus.CounterVec
}

// NewPipeline registra las metricas en reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)
	return &Pipeline{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptfabric_pipeline_requests_total",
			Help: "Total number of pipeline requests by outcome",
		}, []string{"outcome"}),

		// Hasta 2 minutos para respuestas del LLM.
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptfabric_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"stage"}),

		FailOpen: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptfabric_stage_fail_open_total",
			Help: "Stage failures recovered locally by falling back",
		}, []string{"stage"}),
	}
}

func (p *Pipeline) ObserveStage(stage string, started time.Time) {
	if p == nil {
		return
	}
	p.StageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (p *Pipeline) RecordOutcome(outcome string) {
	if p == nil {
		return
	}
	p.Requests.WithLabelValues(outcome).Inc()
}

func (p *Pipeline) RecordFailOpen(stage string) {
	if p == nil {
		return
	}
	p.FailOpen.WithLabelValues(stage).Inc()
}
