package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
)

// PartStockRepository define el puerto del almacén de existencias de repuestos.
// Usado dentro de transacciones para garantizar consistencia.
type PartStockRepository interface {
	// GetPart devuelve el repuesto o nil si no existe.
	GetPart(ctx context.Context, partID string) (*entity.Part, error)

	// GetQuantity devuelve la existencia en la ubicación (cero si no hay registro).
	GetQuantity(ctx context.Context, partID, location string) (decimal.Decimal, error)

	// ApplyDelta suma delta a la existencia de forma atómica y devuelve la nueva cantidad.
	// ErrNotFound si el repuesto no existe; ErrInsufficientStock si el resultado sería negativo.
	ApplyDelta(ctx context.Context, partID, location string, delta decimal.Decimal) (decimal.Decimal, error)

	// ListStock lista las existencias por ubicación de un repuesto.
	ListStock(ctx context.Context, partID string) ([]*entity.PartStock, error)
}

// ReplenishmentItem resultado crudo para un repuesto de stock bajo su punto de reorden.
type ReplenishmentItem struct {
	PartID       string
	PartNumber   string
	PartName     string
	Department   string
	CurrentStock decimal.Decimal // suma de todas las ubicaciones
	MinQuantity  decimal.Decimal
	UnitCost     decimal.Decimal
}

// ReplenishmentReader consulta de solo lectura para la lista de reposición.
type ReplenishmentReader interface {
	// GetPartsBelowReorderPoint devuelve los repuestos de stock cuya existencia total es
	// inferior a MinQuantity. department vacío = todos.
	GetPartsBelowReorderPoint(ctx context.Context, department string) ([]ReplenishmentItem, error)
}
