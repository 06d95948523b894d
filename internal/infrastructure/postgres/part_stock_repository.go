package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

var (
	_ repository.PartStockRepository = (*PartStockRepo)(nil)
	_ repository.ReplenishmentReader = (*PartStockRepo)(nil)
)

// PartStockRepo implementación de PartStockRepository sobre PostgreSQL (usable con pool o tx).
type PartStockRepo struct {
	q Querier
}

// NewPartStockRepository construye el adaptador de existencias. Pasar pool o tx (Querier).
func NewPartStockRepository(q Querier) *PartStockRepo {
	return &PartStockRepo{q: q}
}

// GetPart obtiene el repuesto; nil si no existe.
func (r *PartStockRepo) GetPart(ctx context.Context, partID string) (*entity.Part, error) {
	query := `
		SELECT id, part_number, name, department, is_stock_item, unit_cost, min_quantity, created_at, updated_at
		FROM parts WHERE id = $1`
	var p entity.Part
	err := r.q.QueryRow(ctx, query, partID).Scan(
		&p.ID, &p.PartNumber, &p.Name, &p.Department, &p.IsStockItem, &p.UnitCost, &p.MinQuantity,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get part: %w", err)
	}
	return &p, nil
}

// GetQuantity devuelve la existencia en la ubicación; cero si no hay fila.
func (r *PartStockRepo) GetQuantity(ctx context.Context, partID, location string) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.q.QueryRow(ctx, `SELECT quantity FROM part_stock WHERE part_id = $1 AND location = $2`, partID, location).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get part stock: %w", err)
	}
	return qty, nil
}

// ApplyDelta suma delta en una sola sentencia. Las entradas hacen upsert; las salidas solo
// actualizan si el resultado no queda negativo, así dos salidas concurrentes no pueden sobregirar.
func (r *PartStockRepo) ApplyDelta(ctx context.Context, partID, location string, delta decimal.Decimal) (decimal.Decimal, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parts WHERE id = $1)`, partID).Scan(&exists); err != nil {
		return decimal.Zero, fmt.Errorf("check part: %w", err)
	}
	if !exists {
		return decimal.Zero, domain.ErrNotFound
	}

	var next decimal.Decimal
	if !delta.IsNegative() {
		query := `
			INSERT INTO part_stock (part_id, location, quantity, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (part_id, location)
			DO UPDATE SET quantity = part_stock.quantity + EXCLUDED.quantity, updated_at = now()
			RETURNING quantity`
		if err := r.q.QueryRow(ctx, query, partID, location, delta).Scan(&next); err != nil {
			return decimal.Zero, fmt.Errorf("increase part stock: %w", err)
		}
		return next, nil
	}

	query := `
		UPDATE part_stock SET quantity = quantity + $3, updated_at = now()
		WHERE part_id = $1 AND location = $2 AND quantity + $3 >= 0
		RETURNING quantity`
	err := r.q.QueryRow(ctx, query, partID, location, delta).Scan(&next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isCheckViolation(err) {
			return decimal.Zero, domain.ErrInsufficientStock
		}
		return decimal.Zero, fmt.Errorf("decrease part stock: %w", err)
	}
	return next, nil
}

// ListStock lista las existencias por ubicación.
func (r *PartStockRepo) ListStock(ctx context.Context, partID string) ([]*entity.PartStock, error) {
	rows, err := r.q.Query(ctx, `
		SELECT part_id, location, quantity, updated_at
		FROM part_stock WHERE part_id = $1 ORDER BY location`, partID)
	if err != nil {
		return nil, fmt.Errorf("list part stock: %w", err)
	}
	defer rows.Close()
	var list []*entity.PartStock
	for rows.Next() {
		var s entity.PartStock
		if err := rows.Scan(&s.PartID, &s.Location, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan part stock: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// GetPartsBelowReorderPoint repuestos de stock cuya existencia total es menor a min_quantity.
func (r *PartStockRepo) GetPartsBelowReorderPoint(ctx context.Context, department string) ([]repository.ReplenishmentItem, error) {
	query := `
		SELECT p.id, p.part_number, p.name, p.department,
		       COALESCE(SUM(s.quantity), 0) AS current_stock, p.min_quantity, p.unit_cost
		FROM parts p
		LEFT JOIN part_stock s ON s.part_id = p.id
		WHERE p.is_stock_item AND p.min_quantity > 0 AND ($1 = '' OR p.department = $1)
		GROUP BY p.id
		HAVING COALESCE(SUM(s.quantity), 0) < p.min_quantity
		ORDER BY p.id`
	rows, err := r.q.Query(ctx, query, department)
	if err != nil {
		return nil, fmt.Errorf("parts below reorder point: %w", err)
	}
	defer rows.Close()
	var out []repository.ReplenishmentItem
	for rows.Next() {
		var it repository.ReplenishmentItem
		if err := rows.Scan(&it.PartID, &it.PartNumber, &it.PartName, &it.Department,
			&it.CurrentStock, &it.MinQuantity, &it.UnitCost); err != nil {
			return nil, fmt.Errorf("scan replenishment item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
