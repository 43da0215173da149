// Package metrics holds the Prometheus collectors of the trade service.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rl1809/survivor-trade/internal/core/domain"
)

const namespace = "survivor_trade"

type Metrics struct {
	Settlements        *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
	LedgerMutations    *prometheus.CounterVec
	Events             *prometheus.CounterVec
}

// New registers the collectors on reg. Tests pass a fresh registry so
// repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Trade settlements by outcome.",
		}, []string{"outcome"}),
		SettlementDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Wall time of a settlement including the store transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		LedgerMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Direct ledger increments and decrements by outcome.",
		}, []string{"op", "outcome"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_events_total",
			Help:      "TradeSettled events by delivery result.",
		}, []string{"result"}),
	}
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientQuantity):
		return "insufficient"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
