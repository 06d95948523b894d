package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
)

// StockTransactionUseCase operaciones de alta, edición en borrador, consulta y notas
// de transacciones de stock. Los cambios de estado van por TransitionUseCase.
type StockTransactionUseCase struct {
	txRunner  TxRunner
	txRepo    repository.StockTransactionRepository
	stockRepo repository.PartStockRepository
	now       func() time.Time
}

// NewStockTransactionUseCase construye el caso de uso.
func NewStockTransactionUseCase(
	txRunner TxRunner,
	txRepo repository.StockTransactionRepository,
	stockRepo repository.PartStockRepository,
) *StockTransactionUseCase {
	return &StockTransactionUseCase{
		txRunner:  txRunner,
		txRepo:    txRepo,
		stockRepo: stockRepo,
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *StockTransactionUseCase) WithClock(now func() time.Time) *StockTransactionUseCase {
	uc.now = now
	return uc
}

// FormatTransactionNumber arma el número legible ST<YY><MM><secuencia de 4 dígitos>.
func FormatTransactionNumber(t time.Time, seq int) string {
	return fmt.Sprintf("ST%s%04d", t.Format("0601"), seq)
}

// Create registra una transacción en draft. El número se genera con un contador atómico
// por período dentro de la misma transacción de almacenamiento.
func (uc *StockTransactionUseCase) Create(ctx context.Context, userID, department string, in dto.CreateStockTransactionRequest) (*dto.StockTransactionResponse, error) {
	txType := entity.TransactionType(strings.ToLower(in.TransactionType))
	direction := entity.AdjustmentDirection(strings.ToLower(in.AdjustmentDirection))
	if txType != entity.TransactionTypeAdjustment {
		direction = ""
	}
	items := toItems(in.Items)
	if err := entity.ValidateItems(txType, direction, items); err != nil {
		return nil, err
	}
	if in.Department != "" {
		department = in.Department
	}

	now := uc.now()
	tx := &entity.StockTransaction{
		ID:                  uuid.New().String(),
		TransactionType:     txType,
		Status:              entity.StatusDraft,
		AdjustmentDirection: direction,
		Items:               items,
		Department:          department,
		Reference:           in.Reference,
		Notes:               strings.TrimSpace(in.Notes),
		CreatedBy:           userID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := uc.txRunner.Run(ctx, func(
		txRepo repository.StockTransactionRepository,
		stockRepo repository.PartStockRepository,
	) error {
		if err := ensurePartsExist(ctx, stockRepo, items); err != nil {
			return err
		}
		seq, err := txRepo.NextSequence(ctx, now.Format("0601"))
		if err != nil {
			return err
		}
		tx.TransactionNumber = FormatTransactionNumber(now, seq)
		return txRepo.Create(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockTransactionResponse(tx)
	return &resp, nil
}

// UpdateItems reemplaza las líneas de una transacción en draft.
func (uc *StockTransactionUseCase) UpdateItems(ctx context.Context, id string, in dto.UpdateItemsRequest) (*dto.StockTransactionResponse, error) {
	if !isUUID(id) {
		return nil, domain.ErrNotFound
	}
	items := toItems(in.Items)
	var out *entity.StockTransaction
	err := uc.txRunner.Run(ctx, func(
		txRepo repository.StockTransactionRepository,
		stockRepo repository.PartStockRepository,
	) error {
		tx, err := txRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return domain.ErrNotFound
		}
		if !tx.IsEditable() {
			return domain.ErrNotEditable
		}
		if err := entity.ValidateItems(tx.TransactionType, tx.AdjustmentDirection, items); err != nil {
			return err
		}
		if err := ensurePartsExist(ctx, stockRepo, items); err != nil {
			return err
		}
		if err := txRepo.ReplaceItems(ctx, tx.ID, items); err != nil {
			return err
		}
		tx.Items = items
		tx.UpdatedAt = uc.now()
		if err := txRepo.Update(ctx, tx); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockTransactionResponse(out)
	return &resp, nil
}

// AddNotes agrega notas visibles. Es la única mutación permitida en cualquier estado.
func (uc *StockTransactionUseCase) AddNotes(ctx context.Context, id string, in dto.AddNotesRequest) (*dto.StockTransactionResponse, error) {
	if strings.TrimSpace(in.Notes) == "" {
		return nil, domain.ErrInvalidInput
	}
	if !isUUID(id) {
		return nil, domain.ErrNotFound
	}
	var out *entity.StockTransaction
	err := uc.txRunner.Run(ctx, func(
		txRepo repository.StockTransactionRepository,
		_ repository.PartStockRepository,
	) error {
		tx, err := txRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if tx == nil {
			return domain.ErrNotFound
		}
		tx.AppendNote(in.Notes)
		tx.UpdatedAt = uc.now()
		if err := txRepo.Update(ctx, tx); err != nil {
			return err
		}
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockTransactionResponse(out)
	return &resp, nil
}

// Get devuelve la entidad (uso interno: autorización por departamento en handlers).
func (uc *StockTransactionUseCase) Get(ctx context.Context, id string) (*entity.StockTransaction, error) {
	if !isUUID(id) {
		return nil, domain.ErrNotFound
	}
	tx, err := uc.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, domain.ErrNotFound
	}
	return tx, nil
}

// GetByID devuelve la transacción.
func (uc *StockTransactionUseCase) GetByID(ctx context.Context, id string) (*dto.StockTransactionResponse, error) {
	tx, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockTransactionResponse(tx)
	return &resp, nil
}

// List lista transacciones con filtros y paginación.
func (uc *StockTransactionUseCase) List(ctx context.Context, in dto.StockTransactionFilterRequest) (*dto.StockTransactionListResponse, error) {
	in.Normalize()
	filter := repository.StockTransactionFilter{
		Status:          entity.TransactionStatus(strings.ToLower(in.Status)),
		TransactionType: entity.TransactionType(strings.ToLower(in.TransactionType)),
		Department:      in.Department,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidInput
	}
	if filter.TransactionType != "" && !filter.TransactionType.Valid() {
		return nil, domain.ErrInvalidInput
	}
	list, total, err := uc.txRepo.List(ctx, filter, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.StockTransactionListResponse{
		Items: make([]dto.StockTransactionResponse, 0, len(list)),
		Page:  dto.NewPageResponse(in.PageRequest, total),
	}
	for _, tx := range list {
		out.Items = append(out.Items, ToStockTransactionResponse(tx))
	}
	return out, nil
}

// GetPartStock devuelve las existencias por ubicación de un repuesto.
func (uc *StockTransactionUseCase) GetPartStock(ctx context.Context, partID string) (*dto.PartStockResponse, error) {
	if !isUUID(partID) {
		return nil, domain.ErrNotFound
	}
	part, err := uc.stockRepo.GetPart(ctx, partID)
	if err != nil {
		return nil, err
	}
	if part == nil {
		return nil, domain.ErrNotFound
	}
	stock, err := uc.stockRepo.ListStock(ctx, partID)
	if err != nil {
		return nil, err
	}
	resp := &dto.PartStockResponse{
		PartID:      part.ID,
		PartNumber:  part.PartNumber,
		Name:        part.Name,
		Department:  part.Department,
		IsStockItem: part.IsStockItem,
		Total:       decimal.Zero,
		Locations:   make([]dto.PartStockLocationDTO, 0, len(stock)),
	}
	for _, s := range stock {
		resp.Total = resp.Total.Add(s.Quantity)
		resp.Locations = append(resp.Locations, dto.PartStockLocationDTO{Location: s.Location, Quantity: s.Quantity})
	}
	return resp, nil
}

func ensurePartsExist(ctx context.Context, stockRepo repository.PartStockRepository, items []entity.StockTransactionItem) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.PartID] {
			continue
		}
		seen[it.PartID] = true
		if !isUUID(it.PartID) {
			return domain.ErrNotFound
		}
		part, err := stockRepo.GetPart(ctx, it.PartID)
		if err != nil {
			return err
		}
		if part == nil {
			return domain.ErrNotFound
		}
	}
	return nil
}

// isUUID acepta solo la forma canónica de 36 caracteres que guardan las columnas UUID.
// Un id con otra forma no puede existir y no se envía al almacenamiento.
func isUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
