package metrics

import "github.com/prometheus/client_golang/prometheus"

const Namespace = "acdm"

var (
	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"service", "route"},
	)

	CBRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "circuitbreaker_reject_total",
			Help:      "Total number of circuit breaker rejections.",
		},
		[]string{"service", "target", "reason"},
	)

	CBState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state (0 closed / 1 half-open / 2 open).",
		},
		[]string{"service", "target"},
	)
)

// MustRegister 注册到 registry，nil 时用默认的
func MustRegister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(RateLimitBlockTotal, CBRejectTotal, CBState)
	reg.MustRegister(domainCollectors()...)
}
