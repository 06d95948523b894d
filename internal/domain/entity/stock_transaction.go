package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/domain"
)

// TransactionType tipo de transacción de stock. Fijo desde la creación.
type TransactionType string

const (
	TransactionTypeReceipt    TransactionType = "receipt"    // entrada
	TransactionTypeIssue      TransactionType = "issue"      // salida
	TransactionTypeTransfer   TransactionType = "transfer"   // traslado entre ubicaciones
	TransactionTypeAdjustment TransactionType = "adjustment" // ajuste (+/-)
	TransactionTypeScrap      TransactionType = "scrap"      // baja definitiva
)

// Valid indica si el tipo pertenece al conjunto cerrado.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeReceipt, TransactionTypeIssue, TransactionTypeTransfer,
		TransactionTypeAdjustment, TransactionTypeScrap:
		return true
	}
	return false
}

// TransactionStatus estado del ciclo de vida de la transacción.
type TransactionStatus string

const (
	StatusDraft     TransactionStatus = "draft"
	StatusPending   TransactionStatus = "pending"
	StatusApproved  TransactionStatus = "approved"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Valid indica si el estado pertenece al conjunto cerrado.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// AffectsInventory es true para los estados en los que el efecto de la transacción
// debe estar reflejado en las existencias.
func (s TransactionStatus) AffectsInventory() bool {
	return s == StatusApproved || s == StatusCompleted
}

// Grafo de transiciones permitidas. cancelled es terminal.
var allowedTransitions = map[TransactionStatus][]TransactionStatus{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusCancelled},
	StatusCancelled: {},
}

// CanTransition verifica si (from, to) es una arista del grafo.
func CanTransition(from, to TransactionStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions devuelve una copia de los estados alcanzables desde from.
func AllowedTransitions(from TransactionStatus) []TransactionStatus {
	allowed := allowedTransitions[from]
	out := make([]TransactionStatus, len(allowed))
	copy(out, allowed)
	return out
}

// AdjustmentDirection sentido de un ajuste; la cantidad de la línea siempre es positiva.
type AdjustmentDirection string

const (
	AdjustmentIncrease AdjustmentDirection = "increase"
	AdjustmentDecrease AdjustmentDirection = "decrease"
)

// Valid indica si la dirección es conocida.
func (d AdjustmentDirection) Valid() bool {
	return d == AdjustmentIncrease || d == AdjustmentDecrease
}

// StockTransactionItem línea de la transacción. Quantity es la magnitud (> 0);
// el sentido lo dan el tipo de transacción y las ubicaciones.
type StockTransactionItem struct {
	PartID       string
	Quantity     decimal.Decimal
	UnitCost     *decimal.Decimal
	FromLocation string
	ToLocation   string
	Notes        string
}

// InventoryDelta cambio firmado efectivamente aplicado a una existencia.
// Se persisten para que la reversión invierta exactamente lo aplicado.
type InventoryDelta struct {
	ItemIndex int
	PartID    string
	Location  string
	Delta     decimal.Decimal
}

// StockTransaction transacción de stock de repuestos.
type StockTransaction struct {
	ID                  string
	TransactionNumber   string // ST<YY><MM><secuencia>, nunca se reasigna
	TransactionType     TransactionType
	Status              TransactionStatus
	AdjustmentDirection AdjustmentDirection // solo para adjustment
	Items               []StockTransactionItem
	Department          string
	Reference           string // orden de trabajo, orden de compra, etc.
	Notes               string
	InternalNotes       string
	CreatedBy           string
	ApprovedBy          string
	ApprovedAt          *time.Time
	CompletedAt         *time.Time
	CancelledAt         *time.Time

	// InventoryApplied es true sii AppliedDeltas están reflejados en las existencias.
	// No se expone en la API.
	InventoryApplied bool
	AppliedDeltas    []InventoryDelta

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEditable: las líneas solo se modifican en borrador.
func (t *StockTransaction) IsEditable() bool {
	return t.Status == StatusDraft
}

// TotalValue suma cantidad * costo unitario de las líneas con costo.
func (t *StockTransaction) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, it := range t.Items {
		if it.UnitCost != nil {
			total = total.Add(it.Quantity.Mul(*it.UnitCost))
		}
	}
	return total
}

// AppendInternalNote agrega una línea con marca de tiempo a las notas internas.
func (t *StockTransaction) AppendInternalNote(now time.Time, line string) {
	entry := "[" + now.UTC().Format(time.RFC3339) + "] " + line
	if t.InternalNotes == "" {
		t.InternalNotes = entry
		return
	}
	t.InternalNotes += "\n" + entry
}

// AppendNote agrega texto a las notas visibles (permitido en cualquier estado).
func (t *StockTransaction) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if t.Notes == "" {
		t.Notes = note
		return
	}
	t.Notes += "\n" + note
}

// DecimalScale decimales que admiten cantidades y costos (NUMERIC(18,4) en Postgres).
const DecimalScale int32 = 4

func fitsScale(v decimal.Decimal) bool {
	return v.Equal(v.Truncate(DecimalScale))
}

// ValidateItems verifica las líneas según el tipo de transacción. Rechaza valores con más
// decimales de los que el almacenamiento conserva.
func ValidateItems(txType TransactionType, direction AdjustmentDirection, items []StockTransactionItem) error {
	if !txType.Valid() || len(items) == 0 {
		return domain.ErrInvalidInput
	}
	if txType == TransactionTypeAdjustment && !direction.Valid() {
		return domain.ErrInvalidInput
	}
	for _, it := range items {
		if it.PartID == "" || !it.Quantity.GreaterThan(decimal.Zero) || !fitsScale(it.Quantity) {
			return domain.ErrInvalidInput
		}
		if it.UnitCost != nil && (it.UnitCost.LessThan(decimal.Zero) || !fitsScale(*it.UnitCost)) {
			return domain.ErrInvalidInput
		}
		if txType == TransactionTypeTransfer && it.FromLocation == it.ToLocation {
			return domain.ErrInvalidInput
		}
	}
	return nil
}
