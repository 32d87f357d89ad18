package metrics

import "github.com/prometheus/client_golang/prometheus"

// 业务指标
var (
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "commands_total",
		Help:      "Commands applied by the platform engine.",
	}, []string{"cmd", "result"})

	CommandLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "command_latency_seconds",
		Help:      "Enqueue to reply latency.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
	}, []string{"cmd"})

	MailboxFull = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "engine_mailbox_full_total",
	})

	UnitsSold = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "units_sold_total",
		Help:      "Token units sold, by phase.",
	}, []string{"phase"})

	ReferralPaid = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "referral_payouts_total",
		Help:      "Referral payouts, by level.",
	}, []string{"level"})

	RoundNumber = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "round_number",
	})

	RoundPhase = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "round_phase",
		Help:      "0 inactive / 1 sale / 2 trade.",
	})

	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "events_published_total",
	}, []string{"sink", "result"})
)

func domainCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		CommandsTotal, CommandLatency, MailboxFull, UnitsSold,
		ReferralPaid, RoundNumber, RoundPhase, EventsPublished,
	}
}
