package infra

import (
	"context"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats exporta as decisões como contadores.
//
// Labels: policy e outcome. Path/key ficam de fora para não explodir a
// cardinalidade.
type PrometheusStats struct {
	decisions *prometheus.CounterVec
	swept     *prometheus.CounterVec
}

func NewPrometheusStats(reg prometheus.Registerer) (*PrometheusStats, error) {
	s := &PrometheusStats{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admission",
			Name:      "decisions_total",
			Help:      "Admission decisions by policy and outcome.",
		}, []string{"policy", "outcome"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admission",
			Name:      "swept_keys_total",
			Help:      "Sliding-window keys reclaimed by the sweeper.",
		}, []string{"policy"}),
	}
	for _, c := range []prometheus.Collector{s.decisions, s.swept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStats) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "rejected"
	if ev.Allowed {
		outcome = "admitted"
	}
	policy := ev.Policy
	if policy == "" {
		policy = "none"
	}
	s.decisions.WithLabelValues(policy, outcome).Inc()
	return nil
}

// ObserveSweep tem a assinatura de WithSweepHook.
func (s *PrometheusStats) ObserveSweep(policy string, removed int) {
	s.swept.WithLabelValues(policy).Add(float64(removed))
}
