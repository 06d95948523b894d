package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
	"github.com/jhoicas/Repuestos-api/internal/infrastructure/memory"
	"github.com/jhoicas/Repuestos-api/pkg/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixture: almacén en memoria con repuestos conocidos y casos de uso cableados
// ──────────────────────────────────────────────────────────────────────────────

const (
	partP      = "11111111-0000-0000-0000-000000000001"
	partQ      = "11111111-0000-0000-0000-000000000002"
	partNoStk  = "11111111-0000-0000-0000-000000000003"
	testUser   = "user-1"
	testDept   = "mantenimiento"
	otherDept  = "flota"
	locationA  = "A"
	locationB  = "B"
	defaultLoc = ""
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	store      *memory.Store
	uc         *inventory.StockTransactionUseCase
	transition *inventory.TransitionUseCase
	metrics    *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, nil)
}

// newFixtureWith permite envolver el almacén con un TxRunner alternativo e inyectar un notificador de auditoría.
func newFixtureWith(t *testing.T, wrap func(*memory.Store) inventory.TxRunner, audit inventory.AuditNotifier) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddPart(entity.Part{ID: partP, PartNumber: "FLT-100", Name: "Filtro de aceite", Department: testDept, IsStockItem: true, UnitCost: d("12.5"), MinQuantity: d("4")})
	store.AddPart(entity.Part{ID: partQ, PartNumber: "BRG-200", Name: "Rodamiento", Department: testDept, IsStockItem: true, UnitCost: d("40"), MinQuantity: d("2")})
	store.AddPart(entity.Part{ID: partNoStk, PartNumber: "SRV-900", Name: "Servicio de torno", Department: testDept, IsStockItem: false})

	var runner inventory.TxRunner = store
	if wrap != nil {
		runner = wrap(store)
	}
	m := metrics.New(prometheus.NewRegistry())
	return &fixture{
		store:      store,
		uc:         inventory.NewStockTransactionUseCase(runner, store.Transactions(), store.Stock()).WithClock(fixedClock),
		transition: inventory.NewTransitionUseCase(runner, memory.NewKeyedLocker(), audit, nil, m).WithClock(fixedClock),
		metrics:    m,
	}
}

func (f *fixture) qty(t *testing.T, partID, location string) decimal.Decimal {
	t.Helper()
	q, err := f.store.Stock().GetQuantity(context.Background(), partID, location)
	require.NoError(t, err)
	return q
}

func (f *fixture) requireQty(t *testing.T, partID, location, want string) {
	t.Helper()
	got := f.qty(t, partID, location)
	require.Truef(t, d(want).Equal(got), "existencia %s@%q: esperado %s, obtenido %s", partID, location, want, got)
}

func (f *fixture) get(t *testing.T, id string) *entity.StockTransaction {
	t.Helper()
	tx, err := f.store.Transactions().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, tx)
	return tx
}

// create registra una transacción en draft y devuelve su ID.
func (f *fixture) create(t *testing.T, in dto.CreateStockTransactionRequest) string {
	t.Helper()
	out, err := f.uc.Create(context.Background(), testUser, testDept, in)
	require.NoError(t, err)
	return out.ID
}

func (f *fixture) move(t *testing.T, id string, status entity.TransactionStatus) *inventory.TransitionResult {
	t.Helper()
	res, err := f.transition.Transition(context.Background(), inventory.TransitionInput{
		TransactionID: id,
		Status:        status,
		UserID:        testUser,
	})
	require.NoError(t, err, "transición a %s", status)
	return res
}

// pending crea la transacción y la lleva a pending.
func (f *fixture) pending(t *testing.T, in dto.CreateStockTransactionRequest) string {
	t.Helper()
	id := f.create(t, in)
	f.move(t, id, entity.StatusPending)
	return id
}

func line(partID, qty, from, to string) dto.StockTransactionItemDTO {
	return dto.StockTransactionItemDTO{PartID: partID, Quantity: d(qty), FromLocation: from, ToLocation: to}
}

func request(txType entity.TransactionType, items ...dto.StockTransactionItemDTO) dto.CreateStockTransactionRequest {
	return dto.CreateStockTransactionRequest{TransactionType: string(txType), Items: items}
}

// ──────────────────────────────────────────────────────────────────────────────
// Dobles de prueba
// ──────────────────────────────────────────────────────────────────────────────

var errDBDown = errors.New("conexión con la base de datos perdida")

// faultyRunner envuelve el almacén y hace fallar la N-ésima llamada a ApplyDelta.
type faultyRunner struct {
	store  *memory.Store
	failOn int
	err    error

	mu    sync.Mutex
	calls int
}

// failingAt hace fallar con err la llamada número n a ApplyDelta.
func failingAt(n int, err error) func(*memory.Store) inventory.TxRunner {
	return func(s *memory.Store) inventory.TxRunner {
		return &faultyRunner{store: s, failOn: n, err: err}
	}
}

func (r *faultyRunner) Run(ctx context.Context, fn func(
	txRepo repository.StockTransactionRepository,
	stockRepo repository.PartStockRepository,
) error) error {
	return r.store.Run(ctx, func(txRepo repository.StockTransactionRepository, stockRepo repository.PartStockRepository) error {
		return fn(txRepo, &faultyStock{PartStockRepository: stockRepo, runner: r})
	})
}

type faultyStock struct {
	repository.PartStockRepository
	runner *faultyRunner
}

func (s *faultyStock) ApplyDelta(ctx context.Context, partID, location string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.runner.mu.Lock()
	s.runner.calls++
	fail := s.runner.calls == s.runner.failOn
	s.runner.mu.Unlock()
	if fail {
		return decimal.Zero, s.runner.err
	}
	return s.PartStockRepository.ApplyDelta(ctx, partID, location, delta)
}

// recordingNotifier entrega los eventos por canal.
type recordingNotifier struct {
	events chan inventory.AuditEvent
	err    error
}

func newRecordingNotifier(err error) *recordingNotifier {
	return &recordingNotifier{events: make(chan inventory.AuditEvent, 16), err: err}
}

func (n *recordingNotifier) Notify(_ context.Context, event inventory.AuditEvent) error {
	n.events <- event
	return n.err
}

// ──────────────────────────────────────────────────────────────────────────────
// Almacén con columnas UUID: un id sin esa forma es un error de sistema
// ──────────────────────────────────────────────────────────────────────────────

var errUUIDSyntax = errors.New("invalid input syntax for type uuid")

func checkUUIDColumn(id string) error {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return errUUIDSyntax
	}
	return nil
}

type uuidTxRepo struct {
	repository.StockTransactionRepository
}

func (r uuidTxRepo) GetByID(ctx context.Context, id string) (*entity.StockTransaction, error) {
	if err := checkUUIDColumn(id); err != nil {
		return nil, err
	}
	return r.StockTransactionRepository.GetByID(ctx, id)
}

func (r uuidTxRepo) GetForUpdate(ctx context.Context, id string) (*entity.StockTransaction, error) {
	if err := checkUUIDColumn(id); err != nil {
		return nil, err
	}
	return r.StockTransactionRepository.GetForUpdate(ctx, id)
}

type uuidStockRepo struct {
	repository.PartStockRepository
}

func (r uuidStockRepo) GetPart(ctx context.Context, partID string) (*entity.Part, error) {
	if err := checkUUIDColumn(partID); err != nil {
		return nil, err
	}
	return r.PartStockRepository.GetPart(ctx, partID)
}

func (r uuidStockRepo) ListStock(ctx context.Context, partID string) ([]*entity.PartStock, error) {
	if err := checkUUIDColumn(partID); err != nil {
		return nil, err
	}
	return r.PartStockRepository.ListStock(ctx, partID)
}

type uuidRunner struct {
	store *memory.Store
}

func (r uuidRunner) Run(ctx context.Context, fn func(
	txRepo repository.StockTransactionRepository,
	stockRepo repository.PartStockRepository,
) error) error {
	return r.store.Run(ctx, func(txRepo repository.StockTransactionRepository, stockRepo repository.PartStockRepository) error {
		return fn(uuidTxRepo{txRepo}, uuidStockRepo{stockRepo})
	})
}
