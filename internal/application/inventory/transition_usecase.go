package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
	"github.com/jhoicas/Repuestos-api/pkg/logger"
	"github.com/jhoicas/Repuestos-api/pkg/metrics"
)

const auditTimeout = 5 * time.Second

// TransitionInput solicitud de cambio de estado. La autorización ya fue verificada por el caller.
type TransitionInput struct {
	TransactionID string
	Status        entity.TransactionStatus
	Notes         string
	UserID        string
}

// InventoryUpdate resumen de conciliación devuelto al caller.
type InventoryUpdate struct {
	Success      bool
	TotalUpdated int
	TotalFailed  int
	Message      string
}

// TransitionResult estado final de la transacción y, si se concilió inventario, su resumen.
type TransitionResult struct {
	Transaction     *entity.StockTransaction
	InventoryUpdate *InventoryUpdate
}

// TransitionUseCase máquina de estados de la transacción de stock.
// Al entrar en approved/completed sin inventario aplicado valida disponibilidad y aplica deltas;
// al cancelar con inventario aplicado revierte exactamente los deltas registrados.
type TransitionUseCase struct {
	txRunner   TxRunner
	locker     Locker
	validator  *AvailabilityValidator
	reconciler *InventoryReconciler
	audit      AuditNotifier
	log        *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewTransitionUseCase construye el caso de uso. audit y m pueden ser nil.
func NewTransitionUseCase(
	txRunner TxRunner,
	locker Locker,
	audit AuditNotifier,
	log *logger.Logger,
	m *metrics.Metrics,
) *TransitionUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &TransitionUseCase{
		txRunner:   txRunner,
		locker:     locker,
		validator:  NewAvailabilityValidator(),
		reconciler: NewInventoryReconciler(),
		audit:      audit,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *TransitionUseCase) WithClock(now func() time.Time) *TransitionUseCase {
	uc.now = now
	return uc
}

// Transition valida la arista, concilia inventario si corresponde y persiste el nuevo estado
// en una sola transacción de almacenamiento.
//
// Errores:
//   - domain.ErrInvalidInput: estado desconocido.
//   - domain.ErrNotFound: la transacción no existe (o el id no es un UUID).
//   - *domain.InvalidTransitionError: arista fuera del grafo; sin mutación.
//   - *domain.InsufficientInventoryError: faltantes; sin mutación.
//   - cualquier otro: fallo de sistema; rollback completo, el caller debe reintentar.
//
// Los fallos por línea durante la conciliación no son error: la transición se confirma y
// InventoryUpdate.Success queda en false.
func (uc *TransitionUseCase) Transition(ctx context.Context, in TransitionInput) (*TransitionResult, error) {
	if in.TransactionID == "" || !in.Status.Valid() {
		return nil, domain.ErrInvalidInput
	}
	if !isUUID(in.TransactionID) {
		return nil, domain.ErrNotFound
	}

	unlock, err := uc.locker.Lock(ctx, "stock-transaction:"+in.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("bloquear transacción: %w", err)
	}
	defer unlock()

	start := time.Now()
	var (
		result *TransitionResult
		from   entity.TransactionStatus
		recon  *ReconciliationResult
		op     string
	)

	err = uc.txRunner.Run(ctx, func(
		txRepo repository.StockTransactionRepository,
		stockRepo repository.PartStockRepository,
	) error {
		tx, err := txRepo.GetForUpdate(ctx, in.TransactionID)
		if err != nil {
			return err
		}
		if tx == nil {
			return domain.ErrNotFound
		}
		from = tx.Status
		if !entity.CanTransition(tx.Status, in.Status) {
			return &domain.InvalidTransitionError{From: string(tx.Status), To: string(in.Status)}
		}

		recon = nil
		switch {
		case in.Status.AffectsInventory() && !tx.InventoryApplied:
			check, err := uc.validator.Validate(ctx, stockRepo, tx)
			if err != nil {
				return err
			}
			if !check.Valid {
				return &domain.InsufficientInventoryError{Issues: check.Issues}
			}
			op = "apply"
			recon, err = uc.reconciler.Apply(ctx, stockRepo, tx)
			if err != nil {
				return err
			}
			tx.InventoryApplied = true
			tx.AppliedDeltas = recon.Applied
		case in.Status == entity.StatusCancelled && tx.InventoryApplied:
			op = "reverse"
			recon, err = uc.reconciler.Reverse(ctx, stockRepo, tx)
			if err != nil {
				return err
			}
			// Lo que no se pudo revertir sigue en existencias y sigue en el registro.
			tx.AppliedDeltas = recon.Unreversed
			tx.InventoryApplied = len(recon.Unreversed) > 0
		}

		now := uc.now()
		tx.Status = in.Status
		tx.UpdatedAt = now
		switch in.Status {
		case entity.StatusApproved:
			tx.ApprovedBy = in.UserID
			tx.ApprovedAt = &now
		case entity.StatusCompleted:
			tx.CompletedAt = &now
		case entity.StatusCancelled:
			tx.CancelledAt = &now
		}

		line := fmt.Sprintf("estado %s -> %s por %s", from, in.Status, in.UserID)
		if in.Notes != "" {
			line += ": " + in.Notes
		}
		tx.AppendInternalNote(now, line)
		if recon != nil && !recon.Success {
			for _, f := range recon.Failures {
				tx.AppendInternalNote(now, fmt.Sprintf("conciliación %s línea %d (%s): %s", op, f.ItemIndex+1, f.PartID, f.Reason))
			}
		}

		if err := txRepo.Update(ctx, tx); err != nil {
			return err
		}
		result = &TransitionResult{Transaction: tx, InventoryUpdate: toInventoryUpdate(recon)}
		return nil
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		uc.metrics.ObserveTransition(string(from), string(in.Status), outcomeFor(err), elapsed)
		return nil, err
	}

	outcome := metrics.OutcomeCommitted
	if recon != nil {
		uc.metrics.ObserveReconciliation(op, recon.TotalUpdated, recon.TotalFailed, recon.TotalSkipped)
		if !recon.Success {
			outcome = metrics.OutcomePartial
			uc.log.Warn().
				Str("transaction_id", result.Transaction.ID).
				Str("transaction_number", result.Transaction.TransactionNumber).
				Str("operation", op).
				Int("total_updated", recon.TotalUpdated).
				Int("total_failed", recon.TotalFailed).
				Msg("conciliación de inventario parcial, requiere revisión manual")
		}
	}
	uc.metrics.ObserveTransition(string(from), string(in.Status), outcome, elapsed)
	uc.log.Info().
		Str("transaction_id", result.Transaction.ID).
		Str("from", string(from)).
		Str("to", string(in.Status)).
		Bool("inventory_reconciled", recon != nil).
		Msg("transición de transacción de stock confirmada")

	uc.notify(AuditEvent{
		TransactionID:     result.Transaction.ID,
		TransactionNumber: result.Transaction.TransactionNumber,
		FromStatus:        from,
		ToStatus:          in.Status,
		UserID:            in.UserID,
		Notes:             in.Notes,
		InventoryUpdate:   result.InventoryUpdate,
		OccurredAt:        result.Transaction.UpdatedAt,
	})
	return result, nil
}

// notify envía el evento de auditoría sin bloquear la respuesta.
func (uc *TransitionUseCase) notify(event AuditEvent) {
	if uc.audit == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := uc.audit.Notify(ctx, event); err != nil {
			uc.metrics.IncAuditFailure()
			uc.log.Error().Err(err).
				Str("transaction_id", event.TransactionID).
				Msg("notificación de auditoría fallida")
		}
	}()
}

func toInventoryUpdate(r *ReconciliationResult) *InventoryUpdate {
	if r == nil {
		return nil
	}
	return &InventoryUpdate{
		Success:      r.Success,
		TotalUpdated: r.TotalUpdated,
		TotalFailed:  r.TotalFailed,
		Message:      r.Message,
	}
}

func outcomeFor(err error) string {
	var insufficient *domain.InsufficientInventoryError
	switch {
	case errors.As(err, &insufficient):
		return metrics.OutcomeInsufficient
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
