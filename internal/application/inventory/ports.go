package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de almacenamiento, pasando repositorios
// atados a esa transacción. Si fn devuelve error se hace rollback de todo (estado, bandera y deltas).
type TxRunner interface {
	Run(ctx context.Context, fn func(
		txRepo repository.StockTransactionRepository,
		stockRepo repository.PartStockRepository,
	) error) error
}

// Locker exclusión mutua por clave (una transición a la vez por transacción de stock).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AuditEvent notificación posterior a una transición confirmada.
type AuditEvent struct {
	TransactionID     string
	TransactionNumber string
	FromStatus        entity.TransactionStatus
	ToStatus          entity.TransactionStatus
	UserID            string
	Notes             string
	InventoryUpdate   *InventoryUpdate
	OccurredAt        time.Time
}

// AuditNotifier colaborador externo de auditoría. Fire-and-forget: sus errores no bloquean la transición.
type AuditNotifier interface {
	Notify(ctx context.Context, event AuditEvent) error
}
