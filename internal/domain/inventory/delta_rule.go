package inventory

import (
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
)

// ItemDeltas agrupa los deltas firmados que produce una línea de la transacción.
// Un traslado produce dos (salida en origen, entrada en destino); el resto uno.
type ItemDeltas struct {
	ItemIndex int
	PartID    string
	Deltas    []entity.InventoryDelta
}

// ComputeDeltas aplica la regla de deltas por tipo de transacción (servicio de dominio).
// La cantidad de cada línea es su magnitud positiva; el signo lo define el tipo:
//
//	receipt    +q en destino
//	issue      -q en origen
//	transfer   -q en origen, +q en destino
//	adjustment ±q según AdjustmentDirection
//	scrap      -q en origen, sin crédito
func ComputeDeltas(tx *entity.StockTransaction) ([]ItemDeltas, error) {
	if err := entity.ValidateItems(tx.TransactionType, tx.AdjustmentDirection, tx.Items); err != nil {
		return nil, err
	}
	out := make([]ItemDeltas, 0, len(tx.Items))
	for i, it := range tx.Items {
		q := it.Quantity
		leg := func(location string, positive bool) entity.InventoryDelta {
			d := entity.InventoryDelta{ItemIndex: i, PartID: it.PartID, Location: location, Delta: q}
			if !positive {
				d.Delta = q.Neg()
			}
			return d
		}

		var deltas []entity.InventoryDelta
		switch tx.TransactionType {
		case entity.TransactionTypeReceipt:
			deltas = []entity.InventoryDelta{leg(it.ToLocation, true)}
		case entity.TransactionTypeIssue, entity.TransactionTypeScrap:
			deltas = []entity.InventoryDelta{leg(it.FromLocation, false)}
		case entity.TransactionTypeTransfer:
			deltas = []entity.InventoryDelta{leg(it.FromLocation, false), leg(it.ToLocation, true)}
		case entity.TransactionTypeAdjustment:
			if tx.AdjustmentDirection == entity.AdjustmentIncrease {
				deltas = []entity.InventoryDelta{leg(firstNonEmpty(it.ToLocation, it.FromLocation), true)}
			} else {
				deltas = []entity.InventoryDelta{leg(firstNonEmpty(it.FromLocation, it.ToLocation), false)}
			}
		default:
			return nil, domain.ErrInvalidInput
		}
		out = append(out, ItemDeltas{ItemIndex: i, PartID: it.PartID, Deltas: deltas})
	}
	return out, nil
}

// InverseDeltas reconstruye, agrupado por línea, el inverso de los deltas registrados.
// Las líneas se recorren en orden inverso y, dentro de cada línea, los tramos también.
// No consulta existencias: solo invierte lo que se aplicó.
func InverseDeltas(applied []entity.InventoryDelta) []ItemDeltas {
	var out []ItemDeltas
	for i := len(applied) - 1; i >= 0; i-- {
		d := applied[i]
		inv := entity.InventoryDelta{ItemIndex: d.ItemIndex, PartID: d.PartID, Location: d.Location, Delta: d.Delta.Neg()}
		if n := len(out); n > 0 && out[n-1].ItemIndex == d.ItemIndex {
			out[n-1].Deltas = append(out[n-1].Deltas, inv)
			continue
		}
		out = append(out, ItemDeltas{ItemIndex: d.ItemIndex, PartID: d.PartID, Deltas: []entity.InventoryDelta{inv}})
	}
	return out
}

// IsOutbound indica si el delta retira existencias.
func IsOutbound(d entity.InventoryDelta) bool {
	return d.Delta.IsNegative()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
