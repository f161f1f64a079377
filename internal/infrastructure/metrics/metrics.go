// Package metrics exposes Prometheus instrumentation for the reward economy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors of the portal engine.
type Metrics struct {
	// TransactionsTotal counts transactions by operation and outcome.
	TransactionsTotal *prometheus.CounterVec

	// TransactionDuration tracks end-to-end transaction latency.
	TransactionDuration *prometheus.HistogramVec

	// BalanceGauge reflects the last persisted balance.
	BalanceGauge prometheus.Gauge

	// AchievementsUnlocked counts unlocked achievements by code.
	AchievementsUnlocked *prometheus.CounterVec

	// ToastsEnqueued counts toasts by severity.
	ToastsEnqueued *prometheus.CounterVec

	// ThemeReconciliations counts poller-detected theme changes.
	ThemeReconciliations prometheus.Counter
}

// New creates and registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reward_hub",
			Name:      "transactions_total",
			Help:      "Transactions by operation and outcome.",
		}, []string{"operation", "outcome"}),

		TransactionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reward_hub",
			Name:      "transaction_duration_seconds",
			Help:      "Transaction latency from validation to persist.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		BalanceGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reward_hub",
			Name:      "balance_aqcha",
			Help:      "Last persisted student balance.",
		}),

		AchievementsUnlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reward_hub",
			Name:      "achievements_unlocked_total",
			Help:      "Achievements unlocked by code.",
		}, []string{"code"}),

		ToastsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reward_hub",
			Name:      "toasts_enqueued_total",
			Help:      "Toasts enqueued by severity.",
		}, []string{"severity"}),

		ThemeReconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reward_hub",
			Name:      "theme_reconciliations_total",
			Help:      "Theme changes detected by the sync poller.",
		}),
	}

	reg.MustRegister(
		m.TransactionsTotal,
		m.TransactionDuration,
		m.BalanceGauge,
		m.AchievementsUnlocked,
		m.ToastsEnqueued,
		m.ThemeReconciliations,
	)
	return m
}

// NewUnregistered creates collectors without registering them. For tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// RecordTransaction records one transaction outcome.
func (m *Metrics) RecordTransaction(operation, outcome string, seconds float64) {
	m.TransactionsTotal.WithLabelValues(operation, outcome).Inc()
	m.TransactionDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordAchievement counts one unlocked achievement.
func (m *Metrics) RecordAchievement(code string) {
	m.AchievementsUnlocked.WithLabelValues(code).Inc()
}

// RecordToast counts one enqueued toast.
func (m *Metrics) RecordToast(severity string) {
	m.ToastsEnqueued.WithLabelValues(severity).Inc()
}
