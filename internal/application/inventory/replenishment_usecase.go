package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

// ReplenishmentUseCase genera la lista de reposición de repuestos.
// Considera la existencia total de todas las ubicaciones frente al punto de reorden.
type ReplenishmentUseCase struct {
	reader repository.ReplenishmentReader
}

// NewReplenishmentUseCase construye el caso de uso de reposición.
func NewReplenishmentUseCase(reader repository.ReplenishmentReader) *ReplenishmentUseCase {
	return &ReplenishmentUseCase{reader: reader}
}

// GenerateReplenishmentList devuelve los repuestos bajo punto de reorden con la cantidad
// sugerida de pedido, ordenados por mayor déficit relativo.
// department puede ser vacío para considerar todos los departamentos.
func (uc *ReplenishmentUseCase) GenerateReplenishmentList(ctx context.Context, department string) ([]dto.ReplenishmentSuggestionDTO, error) {
	rawItems, err := uc.reader.GetPartsBelowReorderPoint(ctx, department)
	if err != nil {
		return nil, err
	}
	if len(rawItems) == 0 {
		return []dto.ReplenishmentSuggestionDTO{}, nil
	}

	factor := decimal.NewFromFloat(1.5)
	suggestions := make([]dto.ReplenishmentSuggestionDTO, 0, len(rawItems))
	for _, item := range rawItems {
		idealStock := item.MinQuantity.Mul(factor)
		suggestedQty := idealStock.Sub(item.CurrentStock)
		if suggestedQty.LessThan(decimal.Zero) {
			suggestedQty = decimal.Zero
		}
		suggestions = append(suggestions, dto.ReplenishmentSuggestionDTO{
			PartID:             item.PartID,
			PartNumber:         item.PartNumber,
			PartName:           item.PartName,
			Department:         item.Department,
			CurrentStock:       item.CurrentStock,
			MinQuantity:        item.MinQuantity,
			IdealStock:         idealStock,
			SuggestedOrderQty:  suggestedQty,
			UnitCost:           item.UnitCost,
			EstimatedOrderCost: suggestedQty.Mul(item.UnitCost),
		})
	}

	// Primero el mayor déficit relativo (existencia / mínimo más bajo); empate por déficit absoluto.
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		ra := a.CurrentStock.Div(a.MinQuantity)
		rb := b.CurrentStock.Div(b.MinQuantity)
		if !ra.Equal(rb) {
			return ra.LessThan(rb)
		}
		return a.MinQuantity.Sub(a.CurrentStock).GreaterThan(b.MinQuantity.Sub(b.CurrentStock))
	})

	for i := range suggestions {
		suggestions[i].Priority = i + 1
	}
	return suggestions, nil
}
