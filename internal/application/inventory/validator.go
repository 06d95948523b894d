package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

// ValidationResult resultado de la validación de disponibilidad.
type ValidationResult struct {
	Valid  bool
	Issues []domain.StockShortfall
}

// AvailabilityValidator simula las salidas de una transacción contra las existencias actuales.
// No modifica ningún registro.
type AvailabilityValidator struct{}

// NewAvailabilityValidator construye el validador.
func NewAvailabilityValidator() *AvailabilityValidator {
	return &AvailabilityValidator{}
}

type stockKey struct {
	partID   string
	location string
}

// Validate revisa cada tramo de salida (issue, origen de transfer, scrap, ajuste negativo).
// Las salidas de varias líneas sobre la misma ubicación se acumulan antes de comparar.
// Los repuestos inexistentes o que no son de stock no se validan aquí: el conciliador los reporta.
func (v *AvailabilityValidator) Validate(
	ctx context.Context,
	stockRepo repository.PartStockRepository,
	tx *entity.StockTransaction,
) (*ValidationResult, error) {
	items, err := inventory.ComputeDeltas(tx)
	if err != nil {
		return nil, err
	}

	required := make(map[stockKey]decimal.Decimal)
	var order []stockKey
	checked := make(map[string]bool)
	skip := make(map[string]bool)

	for _, item := range items {
		for _, d := range item.Deltas {
			if !inventory.IsOutbound(d) {
				continue
			}
			if !checked[d.PartID] {
				checked[d.PartID] = true
				part, err := stockRepo.GetPart(ctx, d.PartID)
				if err != nil {
					return nil, err
				}
				skip[d.PartID] = part == nil || !part.IsStockItem
			}
			if skip[d.PartID] {
				continue
			}
			k := stockKey{partID: d.PartID, location: d.Location}
			if _, ok := required[k]; !ok {
				order = append(order, k)
				required[k] = decimal.Zero
			}
			required[k] = required[k].Add(d.Delta.Neg())
		}
	}

	result := &ValidationResult{Valid: true}
	for _, k := range order {
		available, err := stockRepo.GetQuantity(ctx, k.partID, k.location)
		if err != nil {
			return nil, err
		}
		if available.LessThan(required[k]) {
			result.Issues = append(result.Issues, domain.StockShortfall{
				PartID:    k.partID,
				Location:  k.location,
				Required:  required[k],
				Available: available,
			})
		}
	}
	result.Valid = len(result.Issues) == 0
	return result, nil
}
