package iterator

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	suspensionsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "iterator",
		Name:      "suspensions_total",
		Help:      "number of budgeted iterator operations that suspended before completing",
	}, []string{"op"})

	contestsDecidedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "iterator",
		Name:      "contests_decided_total",
		Help:      "number of AND producer contests that reached a decision",
	})

	slowChecksCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "iterator",
		Name:      "slow_checks_total",
		Help:      "number of membership checks answered by the pre-statistics slow path",
	})

	thawFallbacksCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "iterator",
		Name:      "thaw_fallbacks_total",
		Help:      "number of cursors whose position/state overlay was discarded in favor of a reset",
	})

	optimizerRewritesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quarry",
		Subsystem: "iterator",
		Name:      "optimizer_rewrites_total",
		Help:      "number of AND optimizer pass applications that changed the tree",
	}, []string{"pass"})
)

// suspended counts err against the suspension metrics when it is a
// suspension, then passes it through unchanged.
func suspended(op string, err error) error {
	if errors.Is(err, ErrSuspended) {
		suspensionsCount.WithLabelValues(op).Inc()
	}
	return err
}
