// Package metrics exposes ledger counters for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transactions_total",
		Help: "Inventory transactions written, by type and status.",
	}, []string{"type", "status"})

	LedgerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_rejections_total",
		Help: "Stock mutations refused, by error kind.",
	}, []string{"kind"})

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders persisted.",
	})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Orders moved to cancelled.",
	})

	StocktakeAdjustments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stocktake_adjustments_total",
		Help: "Stocktake items adjusted back into the ledger.",
	})
)
