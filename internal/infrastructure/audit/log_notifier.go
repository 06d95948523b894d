// Package audit notificadores de auditoría que no requieren infraestructura externa.
package audit

import (
	"context"

	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/pkg/logger"
)

var _ inventory.AuditNotifier = (*LogNotifier)(nil)

// LogNotifier escribe cada transición confirmada en el log estructurado.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, event inventory.AuditEvent) error {
	ev := n.log.Info().
		Str("audit", "stock_transaction").
		Str("transaction_id", event.TransactionID).
		Str("transaction_number", event.TransactionNumber).
		Str("from", string(event.FromStatus)).
		Str("to", string(event.ToStatus)).
		Str("user_id", event.UserID).
		Time("occurred_at", event.OccurredAt)
	if event.Notes != "" {
		ev = ev.Str("notes", event.Notes)
	}
	if u := event.InventoryUpdate; u != nil {
		ev = ev.Bool("inventory_success", u.Success).
			Int("inventory_updated", u.TotalUpdated).
			Int("inventory_failed", u.TotalFailed)
	}
	ev.Msg("transición auditada")
	return nil
}

// Multi reparte el evento entre varios notificadores; devuelve el primer error.
type Multi []inventory.AuditNotifier

func (m Multi) Notify(ctx context.Context, event inventory.AuditEvent) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
