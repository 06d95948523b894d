// Package memory implementa los puertos de almacenamiento en memoria con semántica transaccional
// (snapshot + rollback). Se usa con STORAGE_DRIVER=memory y en los tests de casos de uso.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

var (
	_ inventory.TxRunner             = (*Store)(nil)
	_ repository.ReplenishmentReader = (*Store)(nil)
)

type stockKey struct {
	partID   string
	location string
}

type state struct {
	parts map[string]entity.Part
	stock map[stockKey]decimal.Decimal
	txs   map[string]*entity.StockTransaction
	seq   map[string]int
}

func (s *state) clone() *state {
	c := &state{
		parts: make(map[string]entity.Part, len(s.parts)),
		stock: make(map[stockKey]decimal.Decimal, len(s.stock)),
		txs:   make(map[string]*entity.StockTransaction, len(s.txs)),
		seq:   make(map[string]int, len(s.seq)),
	}
	for k, v := range s.parts {
		c.parts[k] = v
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.txs {
		c.txs[k] = cloneTx(v)
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// Store almacén en memoria. Run serializa las transacciones (equivalente a aislamiento serializable).
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{state: &state{
		parts: make(map[string]entity.Part),
		stock: make(map[stockKey]decimal.Decimal),
		txs:   make(map[string]*entity.StockTransaction),
		seq:   make(map[string]int),
	}}
}

// AddPart registra un repuesto (carga inicial).
func (s *Store) AddPart(p entity.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.parts[p.ID] = p
}

// RemovePart elimina un repuesto y sus existencias.
func (s *Store) RemovePart(partID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.parts, partID)
	for k := range s.state.stock {
		if k.partID == partID {
			delete(s.state.stock, k)
		}
	}
}

// SetStock fija la existencia de un repuesto en una ubicación (carga inicial).
func (s *Store) SetStock(partID, location string, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.stock[stockKey{partID, location}] = qty
}

// Run ejecuta fn con repositorios atados a un snapshot; si fn falla se descarta el snapshot.
func (s *Store) Run(ctx context.Context, fn func(
	txRepo repository.StockTransactionRepository,
	stockRepo repository.PartStockRepository,
) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	v := &view{st: work}
	if err := fn(&txRepo{v: v}, &stockRepo{v: v}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Transactions devuelve el repositorio de transacciones fuera de Run (cada llamada es atómica).
func (s *Store) Transactions() repository.StockTransactionRepository {
	return &txRepo{v: &view{store: s}}
}

// Stock devuelve el repositorio de existencias fuera de Run (cada llamada es atómica).
func (s *Store) Stock() repository.PartStockRepository {
	return &stockRepo{v: &view{store: s}}
}

// GetPartsBelowReorderPoint implementa repository.ReplenishmentReader.
func (s *Store) GetPartsBelowReorderPoint(_ context.Context, department string) ([]repository.ReplenishmentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := make(map[string]decimal.Decimal)
	for k, q := range s.state.stock {
		totals[k.partID] = totals[k.partID].Add(q)
	}
	var out []repository.ReplenishmentItem
	for _, p := range s.state.parts {
		if !p.IsStockItem || !p.MinQuantity.GreaterThan(decimal.Zero) {
			continue
		}
		if department != "" && p.Department != department {
			continue
		}
		if totals[p.ID].LessThan(p.MinQuantity) {
			out = append(out, repository.ReplenishmentItem{
				PartID:       p.ID,
				PartNumber:   p.PartNumber,
				PartName:     p.Name,
				Department:   p.Department,
				CurrentStock: totals[p.ID],
				MinQuantity:  p.MinQuantity,
				UnitCost:     p.UnitCost,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartID < out[j].PartID })
	return out, nil
}

// view accede al estado: dentro de Run usa el snapshot sin bloquear; fuera toma el mutex por llamada.
type view struct {
	st    *state
	store *Store
}

func (v *view) do(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

type stockRepo struct{ v *view }

func (r *stockRepo) GetPart(_ context.Context, partID string) (*entity.Part, error) {
	var out *entity.Part
	err := r.v.do(func(st *state) error {
		if p, ok := st.parts[partID]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *stockRepo) GetQuantity(_ context.Context, partID, location string) (decimal.Decimal, error) {
	var q decimal.Decimal
	err := r.v.do(func(st *state) error {
		q = st.stock[stockKey{partID, location}]
		return nil
	})
	return q, err
}

func (r *stockRepo) ApplyDelta(ctx context.Context, partID, location string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	var next decimal.Decimal
	err := r.v.do(func(st *state) error {
		if _, ok := st.parts[partID]; !ok {
			return domain.ErrNotFound
		}
		k := stockKey{partID, location}
		next = st.stock[k].Add(delta)
		if next.IsNegative() {
			return domain.ErrInsufficientStock
		}
		st.stock[k] = next
		return nil
	})
	return next, err
}

func (r *stockRepo) ListStock(_ context.Context, partID string) ([]*entity.PartStock, error) {
	var out []*entity.PartStock
	err := r.v.do(func(st *state) error {
		for k, q := range st.stock {
			if k.partID == partID {
				out = append(out, &entity.PartStock{PartID: partID, Location: k.location, Quantity: q})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, err
}

type txRepo struct{ v *view }

func (r *txRepo) Create(_ context.Context, tx *entity.StockTransaction) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.txs[tx.ID]; ok {
			return domain.ErrDuplicate
		}
		for _, existing := range st.txs {
			if existing.TransactionNumber == tx.TransactionNumber {
				return domain.ErrDuplicate
			}
		}
		tx.Version = 1
		st.txs[tx.ID] = cloneTx(tx)
		return nil
	})
}

func (r *txRepo) GetByID(_ context.Context, id string) (*entity.StockTransaction, error) {
	var out *entity.StockTransaction
	err := r.v.do(func(st *state) error {
		if tx, ok := st.txs[id]; ok {
			out = cloneTx(tx)
		}
		return nil
	})
	return out, err
}

// GetForUpdate: dentro de Run el snapshot ya es exclusivo.
func (r *txRepo) GetForUpdate(ctx context.Context, id string) (*entity.StockTransaction, error) {
	return r.GetByID(ctx, id)
}

func (r *txRepo) Update(_ context.Context, tx *entity.StockTransaction) error {
	return r.v.do(func(st *state) error {
		current, ok := st.txs[tx.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if current.Version != tx.Version {
			return domain.ErrConflict
		}
		tx.Version++
		stored := cloneTx(tx)
		stored.Items = current.Items
		st.txs[tx.ID] = stored
		return nil
	})
}

func (r *txRepo) ReplaceItems(_ context.Context, transactionID string, items []entity.StockTransactionItem) error {
	return r.v.do(func(st *state) error {
		current, ok := st.txs[transactionID]
		if !ok {
			return domain.ErrNotFound
		}
		current.Items = append([]entity.StockTransactionItem(nil), items...)
		return nil
	})
}

func (r *txRepo) List(_ context.Context, filter repository.StockTransactionFilter, limit, offset int) ([]*entity.StockTransaction, int, error) {
	var all []*entity.StockTransaction
	err := r.v.do(func(st *state) error {
		for _, tx := range st.txs {
			if filter.Status != "" && tx.Status != filter.Status {
				continue
			}
			if filter.TransactionType != "" && tx.TransactionType != filter.TransactionType {
				continue
			}
			if filter.Department != "" && tx.Department != filter.Department {
				continue
			}
			all = append(all, cloneTx(tx))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []*entity.StockTransaction{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *txRepo) NextSequence(_ context.Context, period string) (int, error) {
	var n int
	err := r.v.do(func(st *state) error {
		st.seq[period]++
		n = st.seq[period]
		return nil
	})
	return n, err
}

func cloneTx(tx *entity.StockTransaction) *entity.StockTransaction {
	c := *tx
	c.Items = append([]entity.StockTransactionItem(nil), tx.Items...)
	c.AppliedDeltas = append([]entity.InventoryDelta(nil), tx.AppliedDeltas...)
	c.ApprovedAt = cloneTime(tx.ApprovedAt)
	c.CompletedAt = cloneTime(tx.CompletedAt)
	c.CancelledAt = cloneTime(tx.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
