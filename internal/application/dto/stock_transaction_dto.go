package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockTransactionItemDTO línea de una transacción de stock.
type StockTransactionItemDTO struct {
	PartID       string           `json:"part_id"`
	Quantity     decimal.Decimal  `json:"quantity"`
	UnitCost     *decimal.Decimal `json:"unit_cost,omitempty"`
	FromLocation string           `json:"from_location,omitempty"`
	ToLocation   string           `json:"to_location,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

// CreateStockTransactionRequest body para POST /api/stock-transactions (queda en draft).
type CreateStockTransactionRequest struct {
	TransactionType     string                    `json:"transaction_type"`
	AdjustmentDirection string                    `json:"adjustment_direction,omitempty"` // increase | decrease
	Department          string                    `json:"department,omitempty"`
	Reference           string                    `json:"reference,omitempty"`
	Notes               string                    `json:"notes,omitempty"`
	Items               []StockTransactionItemDTO `json:"items"`
}

// UpdateItemsRequest body para PUT /api/stock-transactions/:id/items.
type UpdateItemsRequest struct {
	Items []StockTransactionItemDTO `json:"items"`
}

// UpdateStatusRequest body para PATCH /api/stock-transactions/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// AddNotesRequest body para POST /api/stock-transactions/:id/notes.
type AddNotesRequest struct {
	Notes string `json:"notes"`
}

// StockTransactionFilterRequest query params del listado.
type StockTransactionFilterRequest struct {
	PageRequest
	Status          string `query:"status"`
	TransactionType string `query:"transaction_type"`
	Department      string `query:"department"`
}

// StockTransactionResponse representación pública (sin la bandera interna de inventario).
type StockTransactionResponse struct {
	ID                  string                    `json:"id"`
	TransactionNumber   string                    `json:"transaction_number"`
	TransactionType     string                    `json:"transaction_type"`
	Status              string                    `json:"status"`
	AdjustmentDirection string                    `json:"adjustment_direction,omitempty"`
	Department          string                    `json:"department"`
	Reference           string                    `json:"reference,omitempty"`
	Notes               string                    `json:"notes,omitempty"`
	InternalNotes       string                    `json:"internal_notes,omitempty"`
	Items               []StockTransactionItemDTO `json:"items"`
	TotalValue          decimal.Decimal           `json:"total_value"`
	AllowedTransitions  []string                  `json:"allowed_transitions"`
	CreatedBy           string                    `json:"created_by"`
	ApprovedBy          string                    `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time                `json:"approved_at,omitempty"`
	CompletedAt         *time.Time                `json:"completed_at,omitempty"`
	CancelledAt         *time.Time                `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

// StockTransactionListResponse listado paginado.
type StockTransactionListResponse struct {
	Items []StockTransactionResponse `json:"items"`
	Page  PageResponse               `json:"page"`
}

// InventoryUpdateDTO resumen de la conciliación de inventario ejecutada por una transición.
type InventoryUpdateDTO struct {
	Success      bool   `json:"success"`
	TotalUpdated int    `json:"total_updated"`
	TotalFailed  int    `json:"total_failed"`
	Message      string `json:"message"`
}

// StatusUpdateResponse respuesta de PATCH /api/stock-transactions/:id/status.
// InventoryUpdate es null cuando la transición no tocó el inventario.
type StatusUpdateResponse struct {
	Transaction     StockTransactionResponse `json:"transaction"`
	InventoryUpdate *InventoryUpdateDTO      `json:"inventory_update"`
}

// ShortfallDTO repuesto sin existencia suficiente para la salida solicitada.
type ShortfallDTO struct {
	PartID    string          `json:"part_id"`
	Location  string          `json:"location,omitempty"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

// InsufficientInventoryResponse error 409 con el detalle de faltantes.
type InsufficientInventoryResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Issues  []ShortfallDTO `json:"issues"`
}
