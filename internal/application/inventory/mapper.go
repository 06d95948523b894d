package inventory

import (
	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
)

// ToStockTransactionResponse adapta la entidad al DTO público (oculta InventoryApplied y deltas).
func ToStockTransactionResponse(tx *entity.StockTransaction) dto.StockTransactionResponse {
	items := make([]dto.StockTransactionItemDTO, 0, len(tx.Items))
	for _, it := range tx.Items {
		items = append(items, dto.StockTransactionItemDTO{
			PartID:       it.PartID,
			Quantity:     it.Quantity,
			UnitCost:     it.UnitCost,
			FromLocation: it.FromLocation,
			ToLocation:   it.ToLocation,
			Notes:        it.Notes,
		})
	}
	allowed := entity.AllowedTransitions(tx.Status)
	next := make([]string, 0, len(allowed))
	for _, s := range allowed {
		next = append(next, string(s))
	}
	return dto.StockTransactionResponse{
		ID:                  tx.ID,
		TransactionNumber:   tx.TransactionNumber,
		TransactionType:     string(tx.TransactionType),
		Status:              string(tx.Status),
		AdjustmentDirection: string(tx.AdjustmentDirection),
		Department:          tx.Department,
		Reference:           tx.Reference,
		Notes:               tx.Notes,
		InternalNotes:       tx.InternalNotes,
		Items:               items,
		TotalValue:          tx.TotalValue(),
		AllowedTransitions:  next,
		CreatedBy:           tx.CreatedBy,
		ApprovedBy:          tx.ApprovedBy,
		ApprovedAt:          tx.ApprovedAt,
		CompletedAt:         tx.CompletedAt,
		CancelledAt:         tx.CancelledAt,
		CreatedAt:           tx.CreatedAt,
		UpdatedAt:           tx.UpdatedAt,
	}
}

// ToStatusUpdateResponse adapta el resultado de una transición.
func ToStatusUpdateResponse(r *TransitionResult) dto.StatusUpdateResponse {
	out := dto.StatusUpdateResponse{Transaction: ToStockTransactionResponse(r.Transaction)}
	if r.InventoryUpdate != nil {
		out.InventoryUpdate = &dto.InventoryUpdateDTO{
			Success:      r.InventoryUpdate.Success,
			TotalUpdated: r.InventoryUpdate.TotalUpdated,
			TotalFailed:  r.InventoryUpdate.TotalFailed,
			Message:      r.InventoryUpdate.Message,
		}
	}
	return out
}

// ToShortfalls adapta los faltantes de la validación de disponibilidad.
func ToShortfalls(issues []domain.StockShortfall) []dto.ShortfallDTO {
	out := make([]dto.ShortfallDTO, 0, len(issues))
	for _, is := range issues {
		out = append(out, dto.ShortfallDTO{
			PartID:    is.PartID,
			Location:  is.Location,
			Required:  is.Required,
			Available: is.Available,
		})
	}
	return out
}

func toItems(in []dto.StockTransactionItemDTO) []entity.StockTransactionItem {
	out := make([]entity.StockTransactionItem, 0, len(in))
	for _, it := range in {
		out = append(out, entity.StockTransactionItem{
			PartID:       it.PartID,
			Quantity:     it.Quantity,
			UnitCost:     it.UnitCost,
			FromLocation: it.FromLocation,
			ToLocation:   it.ToLocation,
			Notes:        it.Notes,
		})
	}
	return out
}
