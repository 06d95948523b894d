package memory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
)

type seedFile struct {
	Parts []struct {
		ID          string          `json:"id"`
		PartNumber  string          `json:"part_number"`
		Name        string          `json:"name"`
		Department  string          `json:"department"`
		IsStockItem *bool           `json:"is_stock_item"`
		UnitCost    decimal.Decimal `json:"unit_cost"`
		MinQuantity decimal.Decimal `json:"min_quantity"`
		Stock       []struct {
			Location string          `json:"location"`
			Quantity decimal.Decimal `json:"quantity"`
		} `json:"stock"`
	} `json:"parts"`
}

// LoadSeedFile carga repuestos y existencias iniciales desde un JSON
// ({"parts":[{"id":<uuid>,"part_number":..,"stock":[{"location":..,"quantity":..}]}]}).
// is_stock_item ausente se toma como true.
func (s *Store) LoadSeedFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("leer seed: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("decodificar seed: %w", err)
	}
	for _, p := range seed.Parts {
		if p.ID == "" {
			return 0, fmt.Errorf("seed: repuesto sin id (%s)", p.PartNumber)
		}
		if _, err := uuid.Parse(p.ID); err != nil {
			return 0, fmt.Errorf("seed: id de repuesto inválido %q: %w", p.ID, err)
		}
		isStock := p.IsStockItem == nil || *p.IsStockItem
		s.AddPart(entity.Part{
			ID:          p.ID,
			PartNumber:  p.PartNumber,
			Name:        p.Name,
			Department:  p.Department,
			IsStockItem: isStock,
			UnitCost:    p.UnitCost,
			MinQuantity: p.MinQuantity,
		})
		for _, st := range p.Stock {
			if st.Quantity.IsNegative() {
				return 0, fmt.Errorf("seed: existencia negativa para %s", p.ID)
			}
			s.SetStock(p.ID, st.Location, st.Quantity)
		}
	}
	return len(seed.Parts), nil
}
