package repository

import (
	"context"

	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
)

// StockTransactionFilter filtros de listado; los campos vacíos no filtran.
type StockTransactionFilter struct {
	Status          entity.TransactionStatus
	TransactionType entity.TransactionType
	Department      string
}

// StockTransactionRepository define el puerto de persistencia para transacciones de stock.
type StockTransactionRepository interface {
	Create(ctx context.Context, tx *entity.StockTransaction) error
	// GetByID devuelve nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.StockTransaction, error)
	// GetForUpdate bloquea la transacción hasta el fin de la transacción de BD (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.StockTransaction, error)
	// Update persiste estado, metadatos, notas, bandera de inventario y deltas aplicados.
	// Control optimista: falla con ErrConflict si Version no coincide; incrementa Version.
	Update(ctx context.Context, tx *entity.StockTransaction) error
	// ReplaceItems reemplaza las líneas (solo válido en borrador).
	ReplaceItems(ctx context.Context, transactionID string, items []entity.StockTransactionItem) error
	List(ctx context.Context, filter StockTransactionFilter, limit, offset int) ([]*entity.StockTransaction, int, error)
	// NextSequence incrementa de forma atómica el contador del período (YYMM) y devuelve el nuevo valor.
	NextSequence(ctx context.Context, period string) (int, error)
}
