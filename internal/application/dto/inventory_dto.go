package dto

import "github.com/shopspring/decimal"

// PartStockLocationDTO existencia de un repuesto en una ubicación.
type PartStockLocationDTO struct {
	Location string          `json:"location"`
	Quantity decimal.Decimal `json:"quantity"`
}

// PartStockResponse respuesta de GET /api/parts/:id/stock.
type PartStockResponse struct {
	PartID      string                 `json:"part_id"`
	PartNumber  string                 `json:"part_number"`
	Name        string                 `json:"name"`
	Department  string                 `json:"department"`
	IsStockItem bool                   `json:"is_stock_item"`
	Total       decimal.Decimal        `json:"total"`
	Locations   []PartStockLocationDTO `json:"locations"`
}

// ReplenishmentSuggestionDTO representa una sugerencia de reposición para un repuesto
// que se encuentra por debajo de su punto de reorden.
type ReplenishmentSuggestionDTO struct {
	PartID             string          `json:"part_id"`
	PartNumber         string          `json:"part_number"`
	PartName           string          `json:"part_name"`
	Department         string          `json:"department"`
	CurrentStock       decimal.Decimal `json:"current_stock"`
	MinQuantity        decimal.Decimal `json:"min_quantity"`
	IdealStock         decimal.Decimal `json:"ideal_stock"`          // MinQuantity * 1.5
	SuggestedOrderQty  decimal.Decimal `json:"suggested_order_qty"`  // IdealStock - CurrentStock
	UnitCost           decimal.Decimal `json:"unit_cost"`
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"` // SuggestedOrderQty * UnitCost
	Priority           int             `json:"priority"`             // 1 = más urgente
}
