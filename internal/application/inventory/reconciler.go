package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

// ItemFailure línea que no se pudo conciliar.
type ItemFailure struct {
	ItemIndex int
	PartID    string
	Reason    string
}

// ReconciliationResult resultado agregado de Apply o Reverse.
// Success es true solo si TotalFailed == 0.
type ReconciliationResult struct {
	Success      bool
	TotalUpdated int
	TotalFailed  int
	TotalSkipped int // repuestos que no son de stock
	Message      string
	Failures     []ItemFailure

	// Applied deltas efectivamente aplicados por Apply (se persisten en la transacción).
	Applied []entity.InventoryDelta
	// Unreversed deltas originales que Reverse no pudo invertir.
	Unreversed []entity.InventoryDelta
}

// InventoryReconciler aplica y revierte los deltas de una transacción sobre el almacén de existencias.
// Cada línea se procesa de forma independiente: el fallo de una no detiene las demás.
// Un error que no sea de línea (BD caída, contexto cancelado) aborta y se devuelve como error.
type InventoryReconciler struct{}

// NewInventoryReconciler construye el conciliador.
func NewInventoryReconciler() *InventoryReconciler {
	return &InventoryReconciler{}
}

// Apply calcula los deltas de cada línea y los aplica en orden.
func (r *InventoryReconciler) Apply(
	ctx context.Context,
	stockRepo repository.PartStockRepository,
	tx *entity.StockTransaction,
) (*ReconciliationResult, error) {
	items, err := inventory.ComputeDeltas(tx)
	if err != nil {
		return nil, err
	}

	res := &ReconciliationResult{}
	parts := make(map[string]*entity.Part)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, ok := parts[item.PartID]
		if !ok {
			part, err = stockRepo.GetPart(ctx, item.PartID)
			if err != nil {
				return nil, fmt.Errorf("get part %s: %w", item.PartID, err)
			}
			parts[item.PartID] = part
		}
		if part == nil {
			res.addFailure(item, domain.ErrNotFound)
			continue
		}
		if !part.IsStockItem {
			res.TotalSkipped++
			continue
		}

		itemErr, err := applyItem(ctx, stockRepo, item.Deltas)
		if err != nil {
			return nil, err
		}
		if itemErr != nil {
			res.addFailure(item, itemErr)
			continue
		}
		res.TotalUpdated++
		res.Applied = append(res.Applied, item.Deltas...)
	}
	res.finish("inventario actualizado")
	return res, nil
}

// Reverse invierte exactamente los deltas registrados en tx.AppliedDeltas, sin recalcular
// a partir de las líneas ni de las existencias actuales.
func (r *InventoryReconciler) Reverse(
	ctx context.Context,
	stockRepo repository.PartStockRepository,
	tx *entity.StockTransaction,
) (*ReconciliationResult, error) {
	res := &ReconciliationResult{}
	for _, item := range inventory.InverseDeltas(tx.AppliedDeltas) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		itemErr, err := applyItem(ctx, stockRepo, item.Deltas)
		if err != nil {
			return nil, err
		}
		if itemErr != nil {
			res.addFailure(item, itemErr)
			for _, d := range item.Deltas {
				d.Delta = d.Delta.Neg()
				res.Unreversed = append(res.Unreversed, d)
			}
			continue
		}
		res.TotalUpdated++
	}
	// Unreversed queda en el orden en que se aplicó, listo para un Reverse posterior.
	slices.Reverse(res.Unreversed)
	res.finish("inventario revertido")
	return res, nil
}

// applyItem aplica los tramos de una línea. Si un tramo falla por causa de la línea, compensa
// los tramos ya aplicados para que un traslado nunca quede a medias.
// Devuelve itemErr para fallos de línea y err para fallos de sistema.
func applyItem(ctx context.Context, stockRepo repository.PartStockRepository, deltas []entity.InventoryDelta) (itemErr error, err error) {
	for i, d := range deltas {
		_, applyErr := stockRepo.ApplyDelta(ctx, d.PartID, d.Location, d.Delta)
		if applyErr == nil {
			continue
		}
		if !isItemFailure(applyErr) {
			return nil, fmt.Errorf("apply delta %s@%q: %w", d.PartID, d.Location, applyErr)
		}
		for j := i - 1; j >= 0; j-- {
			prev := deltas[j]
			if _, cErr := stockRepo.ApplyDelta(ctx, prev.PartID, prev.Location, prev.Delta.Neg()); cErr != nil {
				return nil, fmt.Errorf("compensar delta %s@%q: %w", prev.PartID, prev.Location, cErr)
			}
		}
		return applyErr, nil
	}
	return nil, nil
}

// isItemFailure distingue los fallos reportables por línea de los fallos de sistema.
func isItemFailure(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInsufficientStock)
}

func (res *ReconciliationResult) addFailure(item inventory.ItemDeltas, err error) {
	res.TotalFailed++
	res.Failures = append(res.Failures, ItemFailure{
		ItemIndex: item.ItemIndex,
		PartID:    item.PartID,
		Reason:    err.Error(),
	})
}

func (res *ReconciliationResult) finish(okPrefix string) {
	res.Success = res.TotalFailed == 0
	if res.Success {
		res.Message = fmt.Sprintf("%s: %d ítem(s)", okPrefix, res.TotalUpdated)
	} else {
		res.Message = fmt.Sprintf("conciliación parcial: %d ítem(s) actualizados, %d con error; requiere revisión manual",
			res.TotalUpdated, res.TotalFailed)
	}
	if res.TotalSkipped > 0 {
		res.Message += fmt.Sprintf("; %d sin control de stock", res.TotalSkipped)
	}
}
