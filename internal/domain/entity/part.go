package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Part representa un repuesto del inventario de mantenimiento.
// Las existencias se llevan por ubicación en PartStock; los repuestos que no son
// de stock (IsStockItem=false) quedan fuera de la conciliación.
type Part struct {
	ID          string
	PartNumber  string
	Name        string
	Department  string
	IsStockItem bool
	UnitCost    decimal.Decimal
	MinQuantity decimal.Decimal // punto de reorden
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PartStock representa la existencia de un repuesto en una ubicación.
// Location vacío es la ubicación por defecto del repuesto.
type PartStock struct {
	PartID    string
	Location  string
	Quantity  decimal.Decimal // nunca negativa
	UpdatedAt time.Time
}
