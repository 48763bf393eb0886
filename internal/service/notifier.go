package service

import (
	"encoding/json"
	"fmt"

	"go-stock-ledger/internal/metrics"
	"go-stock-ledger/internal/model"

	"go.uber.org/zap"
)

// Broadcaster pushes messages to connected operator screens.
type Broadcaster interface {
	Publish(msg []byte)
}

type stockChange struct {
	ID               string `json:"id"`
	ProductID        string `json:"product_id"`
	Type             string `json:"type"`
	Status           string `json:"status"`
	Quantity         int    `json:"quantity"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	Reference        string `json:"reference,omitempty"`
}

// publishStockUpdate announces committed ledger entries. Call it only after the
// unit of work that wrote them has committed.
func publishStockUpdate(b Broadcaster, log *zap.Logger, action string, actor Actor, txns []*model.InventoryTransaction) {
	if b == nil || len(txns) == 0 {
		return
	}
	changes := make([]stockChange, 0, len(txns))
	for _, t := range txns {
		changes = append(changes, stockChange{
			ID:               t.ID.String(),
			ProductID:        t.ProductID.String(),
			Type:             string(t.Type),
			Status:           string(t.Status),
			Quantity:         t.Quantity,
			PreviousQuantity: t.PreviousQuantity,
			NewQuantity:      t.NewQuantity,
			Reference:        t.Reference,
		})
	}
	payload := map[string]interface{}{
		"type":         "stock_update",
		"action":       action,
		"transactions": changes,
		"user": map[string]interface{}{
			"id":   actor.ID,
			"role": actor.Role,
		},
		"message": fmt.Sprintf("%s recorded %d ledger entr%s (%s)", actor.ID, len(changes), plural(len(changes)), action),
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		log.Error("marshal stock update", zap.Error(err))
		return
	}
	b.Publish(msg)
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// committed counts and announces ledger entries once their unit of work has
// committed.
func committed(b Broadcaster, log *zap.Logger, action string, actor Actor, txns ...*model.InventoryTransaction) {
	for _, t := range txns {
		metrics.LedgerTransactions.WithLabelValues(string(t.Type), string(t.Status)).Inc()
		log.Info("ledger entry committed",
			zap.String("action", action),
			zap.String("transaction_id", t.ID.String()),
			zap.String("product_id", t.ProductID.String()),
			zap.String("type", string(t.Type)),
			zap.String("status", string(t.Status)),
			zap.Int("previous_quantity", t.PreviousQuantity),
			zap.Int("new_quantity", t.NewQuantity),
			zap.String("reference", t.Reference),
			zap.String("actor", actor.ID))
	}
	publishStockUpdate(b, log, action, actor, txns)
}

// failed logs a rolled-back operation. Typed errors are caller mistakes or
// business refusals and log at warn; anything else is an internal failure.
func failed(log *zap.Logger, op string, actor Actor, err error) {
	kind := KindOf(err)
	if kind == nil {
		metrics.LedgerRejections.WithLabelValues("internal").Inc()
		log.Error(op+" failed", zap.String("actor", actor.ID), zap.Error(err))
		return
	}
	metrics.LedgerRejections.WithLabelValues(kind.Error()).Inc()
	log.Warn(op+" refused", zap.String("actor", actor.ID), zap.String("kind", kind.Error()), zap.Error(err))
}
