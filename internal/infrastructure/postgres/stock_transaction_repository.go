package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

var _ repository.StockTransactionRepository = (*StockTransactionRepo)(nil)

// StockTransactionRepo implementación de StockTransactionRepository sobre PostgreSQL.
// Líneas y deltas aplicados viven en tablas hijas ordenadas por line_no / seq.
type StockTransactionRepo struct {
	q Querier
}

// NewStockTransactionRepository construye el adaptador. Acepta pool o tx (Querier).
func NewStockTransactionRepository(q Querier) *StockTransactionRepo {
	return &StockTransactionRepo{q: q}
}

const stockTransactionColumns = `
	id, transaction_number, transaction_type, status, adjustment_direction, department,
	reference, notes, internal_notes, created_by, approved_by, approved_at, completed_at,
	cancelled_at, inventory_applied, version, created_at, updated_at`

func (r *StockTransactionRepo) Create(ctx context.Context, tx *entity.StockTransaction) error {
	query := `
		INSERT INTO stock_transactions (` + stockTransactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		tx.ID, tx.TransactionNumber, tx.TransactionType, tx.Status, tx.AdjustmentDirection, tx.Department,
		tx.Reference, tx.Notes, tx.InternalNotes, tx.CreatedBy, tx.ApprovedBy, tx.ApprovedAt, tx.CompletedAt,
		tx.CancelledAt, tx.InventoryApplied, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert stock transaction: %w", err)
	}
	tx.Version = 1
	if err := r.insertItems(ctx, tx.ID, tx.Items); err != nil {
		return err
	}
	return r.insertDeltas(ctx, tx.ID, tx.AppliedDeltas)
}

func (r *StockTransactionRepo) GetByID(ctx context.Context, id string) (*entity.StockTransaction, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate bloquea la fila (SELECT ... FOR UPDATE) hasta el commit o rollback.
func (r *StockTransactionRepo) GetForUpdate(ctx context.Context, id string) (*entity.StockTransaction, error) {
	return r.get(ctx, id, true)
}

func (r *StockTransactionRepo) get(ctx context.Context, id string, forUpdate bool) (*entity.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + ` FROM stock_transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	tx, err := scanStockTransaction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock transaction: %w", err)
	}
	if err := r.loadChildren(ctx, []*entity.StockTransaction{tx}); err != nil {
		return nil, err
	}
	return tx, nil
}

// Update persiste cabecera y deltas con control optimista por version.
func (r *StockTransactionRepo) Update(ctx context.Context, tx *entity.StockTransaction) error {
	query := `
		UPDATE stock_transactions SET
			status = $2, notes = $3, internal_notes = $4, approved_by = $5, approved_at = $6,
			completed_at = $7, cancelled_at = $8, inventory_applied = $9, updated_at = $10,
			version = version + 1
		WHERE id = $1 AND version = $11`
	tag, err := r.q.Exec(ctx, query,
		tx.ID, tx.Status, tx.Notes, tx.InternalNotes, tx.ApprovedBy, tx.ApprovedAt,
		tx.CompletedAt, tx.CancelledAt, tx.InventoryApplied, tx.UpdatedAt, tx.Version,
	)
	if err != nil {
		return fmt.Errorf("update stock transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	tx.Version++

	if _, err := r.q.Exec(ctx, `DELETE FROM stock_transaction_deltas WHERE transaction_id = $1`, tx.ID); err != nil {
		return fmt.Errorf("delete applied deltas: %w", err)
	}
	return r.insertDeltas(ctx, tx.ID, tx.AppliedDeltas)
}

func (r *StockTransactionRepo) ReplaceItems(ctx context.Context, transactionID string, items []entity.StockTransactionItem) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM stock_transaction_items WHERE transaction_id = $1`, transactionID); err != nil {
		return fmt.Errorf("delete stock transaction items: %w", err)
	}
	return r.insertItems(ctx, transactionID, items)
}

func (r *StockTransactionRepo) List(ctx context.Context, filter repository.StockTransactionFilter, limit, offset int) ([]*entity.StockTransaction, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.TransactionType != "" {
		args = append(args, filter.TransactionType)
		conds = append(conds, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM stock_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock transactions: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM stock_transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		stockTransactionColumns, where, len(args)-1, len(args))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock transactions: %w", err)
	}
	defer rows.Close()
	list := []*entity.StockTransaction{}
	for rows.Next() {
		tx, err := scanStockTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan stock transaction: %w", err)
		}
		list = append(list, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()
	if err := r.loadChildren(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// NextSequence usa un upsert para que dos creaciones concurrentes nunca obtengan el mismo número.
func (r *StockTransactionRepo) NextSequence(ctx context.Context, period string) (int, error) {
	query := `
		INSERT INTO stock_transaction_sequences (period, last_value) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET last_value = stock_transaction_sequences.last_value + 1
		RETURNING last_value`
	var n int
	if err := r.q.QueryRow(ctx, query, period).Scan(&n); err != nil {
		return 0, fmt.Errorf("next transaction sequence: %w", err)
	}
	return n, nil
}

func (r *StockTransactionRepo) insertItems(ctx context.Context, transactionID string, items []entity.StockTransactionItem) error {
	query := `
		INSERT INTO stock_transaction_items
			(transaction_id, line_no, part_id, quantity, unit_cost, from_location, to_location, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i, it := range items {
		if _, err := r.q.Exec(ctx, query, transactionID, i, it.PartID, it.Quantity, it.UnitCost,
			it.FromLocation, it.ToLocation, it.Notes); err != nil {
			return fmt.Errorf("insert stock transaction item: %w", err)
		}
	}
	return nil
}

func (r *StockTransactionRepo) insertDeltas(ctx context.Context, transactionID string, deltas []entity.InventoryDelta) error {
	query := `
		INSERT INTO stock_transaction_deltas (transaction_id, seq, item_index, part_id, location, delta)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i, d := range deltas {
		if _, err := r.q.Exec(ctx, query, transactionID, i, d.ItemIndex, d.PartID, d.Location, d.Delta); err != nil {
			return fmt.Errorf("insert applied delta: %w", err)
		}
	}
	return nil
}

// loadChildren carga líneas y deltas de varias transacciones con una consulta por tabla.
func (r *StockTransactionRepo) loadChildren(ctx context.Context, txs []*entity.StockTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	byID := make(map[string]*entity.StockTransaction, len(txs))
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		byID[tx.ID] = tx
		ids = append(ids, tx.ID)
	}

	rows, err := r.q.Query(ctx, `
		SELECT transaction_id, part_id, quantity, unit_cost, from_location, to_location, notes
		FROM stock_transaction_items WHERE transaction_id = ANY($1::uuid[])
		ORDER BY transaction_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("load stock transaction items: %w", err)
	}
	for rows.Next() {
		var (
			txID string
			it   entity.StockTransactionItem
		)
		if err := rows.Scan(&txID, &it.PartID, &it.Quantity, &it.UnitCost, &it.FromLocation, &it.ToLocation, &it.Notes); err != nil {
			rows.Close()
			return fmt.Errorf("scan stock transaction item: %w", err)
		}
		byID[txID].Items = append(byID[txID].Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.q.Query(ctx, `
		SELECT transaction_id, item_index, part_id, location, delta
		FROM stock_transaction_deltas WHERE transaction_id = ANY($1::uuid[])
		ORDER BY transaction_id, seq`, ids)
	if err != nil {
		return fmt.Errorf("load applied deltas: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			txID string
			d    entity.InventoryDelta
		)
		if err := rows.Scan(&txID, &d.ItemIndex, &d.PartID, &d.Location, &d.Delta); err != nil {
			return fmt.Errorf("scan applied delta: %w", err)
		}
		byID[txID].AppliedDeltas = append(byID[txID].AppliedDeltas, d)
	}
	return rows.Err()
}

func scanStockTransaction(row pgx.Row) (*entity.StockTransaction, error) {
	var tx entity.StockTransaction
	err := row.Scan(
		&tx.ID, &tx.TransactionNumber, &tx.TransactionType, &tx.Status, &tx.AdjustmentDirection, &tx.Department,
		&tx.Reference, &tx.Notes, &tx.InternalNotes, &tx.CreatedBy, &tx.ApprovedBy, &tx.ApprovedAt, &tx.CompletedAt,
		&tx.CancelledAt, &tx.InventoryApplied, &tx.Version, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
