package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/pkg/metrics"
)

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios A–C: salida, completar sin doble descuento, cancelar con reversión
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_SalidaAprobarCompletarCancelar(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("10"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "4", "", "")))

	// A: pending -> approved descuenta una vez
	res := f.move(t, id, entity.StatusApproved)
	f.requireQty(t, partP, defaultLoc, "6")
	assert.True(t, f.get(t, id).InventoryApplied)
	require.NotNil(t, res.InventoryUpdate)
	assert.True(t, res.InventoryUpdate.Success)
	assert.Equal(t, 1, res.InventoryUpdate.TotalUpdated)
	assert.Equal(t, 0, res.InventoryUpdate.TotalFailed)
	assert.Equal(t, testUser, res.Transaction.ApprovedBy)
	require.NotNil(t, res.Transaction.ApprovedAt)

	// B: approved -> completed no vuelve a descontar
	res = f.move(t, id, entity.StatusCompleted)
	f.requireQty(t, partP, defaultLoc, "6")
	assert.Nil(t, res.InventoryUpdate, "completar con inventario ya aplicado no concilia")
	assert.True(t, f.get(t, id).InventoryApplied)
	require.NotNil(t, res.Transaction.CompletedAt)

	// C: completed -> cancelled revierte
	res = f.move(t, id, entity.StatusCancelled)
	f.requireQty(t, partP, defaultLoc, "10")
	stored := f.get(t, id)
	assert.False(t, stored.InventoryApplied)
	assert.Empty(t, stored.AppliedDeltas)
	assert.Equal(t, entity.StatusCancelled, stored.Status)
	require.NotNil(t, res.InventoryUpdate)
	assert.True(t, res.InventoryUpdate.Success)
	assert.Contains(t, res.InventoryUpdate.Message, "revertido")
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenario D: faltante rechaza sin mutar
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_FaltanteRechazaSinMutar(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("2"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "5", "", "")))
	before := f.get(t, id)

	_, err := f.transition.Transition(context.Background(), inventory.TransitionInput{
		TransactionID: id, Status: entity.StatusApproved, UserID: testUser,
	})

	var insufficient *domain.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Len(t, insufficient.Issues, 1)
	assert.Equal(t, partP, insufficient.Issues[0].PartID)
	assert.True(t, d("5").Equal(insufficient.Issues[0].Required))
	assert.True(t, d("2").Equal(insufficient.Issues[0].Available))

	f.requireQty(t, partP, defaultLoc, "2")
	after := f.get(t, id)
	assert.Equal(t, entity.StatusPending, after.Status)
	assert.False(t, after.InventoryApplied)
	assert.Equal(t, before.Version, after.Version, "no debe persistirse nada")
	assert.Equal(t, float64(1), testutil.ToFloat64(
		f.metrics.TransitionsTotal.WithLabelValues("pending", "approved", metrics.OutcomeInsufficient)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenario E: traslado entre ubicaciones y su reversión
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_TrasladoYReversion(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, locationA, d("5"))
	f.store.SetStock(partP, locationB, d("1"))
	id := f.pending(t, request(entity.TransactionTypeTransfer, line(partP, "3", locationA, locationB)))

	f.move(t, id, entity.StatusApproved)
	f.requireQty(t, partP, locationA, "2")
	f.requireQty(t, partP, locationB, "4")

	f.move(t, id, entity.StatusCancelled)
	f.requireQty(t, partP, locationA, "5")
	f.requireQty(t, partP, locationB, "1")
}

// ──────────────────────────────────────────────────────────────────────────────
// Propiedades: ida y vuelta, idempotencia, cancelar sin inventario aplicado
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_IdaYVueltaPorTipo(t *testing.T) {
	cases := []struct {
		name string
		req  dto.CreateStockTransactionRequest
	}{
		{"receipt", request(entity.TransactionTypeReceipt, line(partP, "7.5", "", locationA), line(partQ, "2", "", locationB))},
		{"issue", request(entity.TransactionTypeIssue, line(partP, "3", locationA, ""), line(partQ, "1", locationB, ""))},
		{"transfer", request(entity.TransactionTypeTransfer, line(partP, "4", locationA, locationB))},
		{"scrap", request(entity.TransactionTypeScrap, line(partQ, "2", locationB, ""))},
		{"adjustment increase", dto.CreateStockTransactionRequest{TransactionType: "adjustment", AdjustmentDirection: "increase", Items: []dto.StockTransactionItemDTO{line(partP, "1", "", locationA)}}},
		{"adjustment decrease", dto.CreateStockTransactionRequest{TransactionType: "adjustment", AdjustmentDirection: "decrease", Items: []dto.StockTransactionItemDTO{line(partP, "1", locationA, "")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.SetStock(partP, locationA, d("10"))
			f.store.SetStock(partQ, locationB, d("5"))
			id := f.pending(t, tc.req)

			f.move(t, id, entity.StatusApproved)
			f.move(t, id, entity.StatusCancelled)

			f.requireQty(t, partP, locationA, "10")
			f.requireQty(t, partP, locationB, "0")
			f.requireQty(t, partQ, locationB, "5")
			assert.False(t, f.get(t, id).InventoryApplied)
		})
	}
}

func TestTransition_CompletarNoDuplicaEntrada(t *testing.T) {
	f := newFixture(t)
	id := f.pending(t, request(entity.TransactionTypeReceipt, line(partP, "5", "", locationA)))

	f.move(t, id, entity.StatusApproved)
	f.move(t, id, entity.StatusCompleted)

	f.requireQty(t, partP, locationA, "5")
	assert.Len(t, f.get(t, id).AppliedDeltas, 1)
}

func TestTransition_CancelarDesdeDraftOPendingNoTocaInventario(t *testing.T) {
	for _, from := range []entity.TransactionStatus{entity.StatusDraft, entity.StatusPending} {
		t.Run(string(from), func(t *testing.T) {
			f := newFixture(t)
			f.store.SetStock(partP, defaultLoc, d("10"))
			id := f.create(t, request(entity.TransactionTypeIssue, line(partP, "4", "", "")))
			if from == entity.StatusPending {
				f.move(t, id, entity.StatusPending)
			}

			res := f.move(t, id, entity.StatusCancelled)

			assert.Nil(t, res.InventoryUpdate)
			f.requireQty(t, partP, defaultLoc, "10")
			stored := f.get(t, id)
			assert.Equal(t, entity.StatusCancelled, stored.Status)
			assert.False(t, stored.InventoryApplied)
			require.NotNil(t, stored.CancelledAt)
		})
	}
}

func TestTransition_DraftAPendingNoConcilia(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("1"))
	id := f.create(t, request(entity.TransactionTypeIssue, line(partP, "4", "", "")))

	res := f.move(t, id, entity.StatusPending)

	assert.Nil(t, res.InventoryUpdate, "pending no valida ni aplica inventario")
	f.requireQty(t, partP, defaultLoc, "1")
}

// ──────────────────────────────────────────────────────────────────────────────
// Rechazos
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_AristaInvalida(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("10"))
	id := f.create(t, request(entity.TransactionTypeIssue, line(partP, "4", "", "")))

	_, err := f.transition.Transition(context.Background(), inventory.TransitionInput{
		TransactionID: id, Status: entity.StatusApproved, UserID: testUser,
	})

	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, "draft", invalid.From)
	assert.Equal(t, "approved", invalid.To)
	f.requireQty(t, partP, defaultLoc, "10")
	assert.Equal(t, entity.StatusDraft, f.get(t, id).Status)
}

func TestTransition_CanceladaEsTerminal(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, request(entity.TransactionTypeReceipt, line(partP, "1", "", "")))
	f.move(t, id, entity.StatusCancelled)

	for _, to := range []entity.TransactionStatus{entity.StatusDraft, entity.StatusPending, entity.StatusApproved, entity.StatusCompleted, entity.StatusCancelled} {
		_, err := f.transition.Transition(context.Background(), inventory.TransitionInput{TransactionID: id, Status: to, UserID: testUser})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, "cancelled -> %s", to)
	}
}

func TestTransition_EntradaInvalida(t *testing.T) {
	f := newFixture(t)

	_, err := f.transition.Transition(context.Background(), inventory.TransitionInput{TransactionID: "x", Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.transition.Transition(context.Background(), inventory.TransitionInput{Status: entity.StatusPending})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.transition.Transition(context.Background(), inventory.TransitionInput{TransactionID: "no-existe", Status: entity.StatusPending})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Fallos parciales y de sistema
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_FalloParcialConfirmaYReporta(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("10"))
	f.store.SetStock(partQ, defaultLoc, d("10"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "4", "", ""), line(partQ, "1", "", "")))
	f.store.RemovePart(partQ)

	res := f.move(t, id, entity.StatusApproved)

	require.NotNil(t, res.InventoryUpdate)
	assert.False(t, res.InventoryUpdate.Success)
	assert.Equal(t, 1, res.InventoryUpdate.TotalUpdated)
	assert.Equal(t, 1, res.InventoryUpdate.TotalFailed)
	assert.Contains(t, res.InventoryUpdate.Message, "revisión manual")

	stored := f.get(t, id)
	assert.Equal(t, entity.StatusApproved, stored.Status, "la transición se confirma pese al fallo parcial")
	assert.True(t, stored.InventoryApplied)
	require.Len(t, stored.AppliedDeltas, 1, "solo se registra lo aplicado")
	assert.Equal(t, partP, stored.AppliedDeltas[0].PartID)
	assert.Contains(t, stored.InternalNotes, "línea 2")
	f.requireQty(t, partP, defaultLoc, "6")

	// La reversión solo devuelve lo que se aplicó.
	res = f.move(t, id, entity.StatusCancelled)
	assert.True(t, res.InventoryUpdate.Success)
	f.requireQty(t, partP, defaultLoc, "10")
	assert.Equal(t, float64(1), testutil.ToFloat64(
		f.metrics.TransitionsTotal.WithLabelValues("pending", "approved", metrics.OutcomePartial)))
}

func TestTransition_ReversionParcialSiYaSeConsumio(t *testing.T) {
	f := newFixture(t)
	receipt := f.pending(t, request(entity.TransactionTypeReceipt,
		line(partP, "5", "", locationA),
		line(partQ, "3", "", locationA),
		line(partP, "2", "", locationB),
	))
	f.move(t, receipt, entity.StatusApproved)
	issue := f.pending(t, request(entity.TransactionTypeIssue,
		line(partP, "4", locationA, ""),
		line(partP, "2", locationB, ""),
	))
	f.move(t, issue, entity.StatusApproved)
	f.requireQty(t, partP, locationA, "1")
	f.requireQty(t, partP, locationB, "0")

	res := f.move(t, receipt, entity.StatusCancelled)

	require.NotNil(t, res.InventoryUpdate)
	assert.False(t, res.InventoryUpdate.Success)
	assert.Equal(t, 1, res.InventoryUpdate.TotalUpdated)
	assert.Equal(t, 2, res.InventoryUpdate.TotalFailed)
	f.requireQty(t, partP, locationA, "1")
	f.requireQty(t, partP, locationB, "0")
	f.requireQty(t, partQ, locationA, "0")

	stored := f.get(t, receipt)
	assert.Equal(t, entity.StatusCancelled, stored.Status)
	assert.True(t, stored.InventoryApplied, "las entradas de P siguen en existencias")
	require.Len(t, stored.AppliedDeltas, 2, "solo queda registrado lo que no se revirtió")
	want := []entity.InventoryDelta{
		{ItemIndex: 0, PartID: partP, Location: locationA, Delta: d("5")},
		{ItemIndex: 2, PartID: partP, Location: locationB, Delta: d("2")},
	}
	for i, w := range want {
		got := stored.AppliedDeltas[i]
		assert.Equal(t, w.ItemIndex, got.ItemIndex)
		assert.Equal(t, w.PartID, got.PartID)
		assert.Equal(t, w.Location, got.Location)
		assert.Truef(t, w.Delta.Equal(got.Delta), "delta %d: esperado %s, obtenido %s", i, w.Delta, got.Delta)
	}
	assert.Contains(t, stored.InternalNotes, "conciliación reverse línea 1")
	assert.Contains(t, stored.InternalNotes, "conciliación reverse línea 3")
}

func TestTransition_ReversionTotalLimpiaElRegistro(t *testing.T) {
	f := newFixture(t)
	receipt := f.pending(t, request(entity.TransactionTypeReceipt,
		line(partQ, "3", "", locationA),
		line(partP, "5", "", locationA),
	))
	f.move(t, receipt, entity.StatusApproved)

	res := f.move(t, receipt, entity.StatusCancelled)

	require.NotNil(t, res.InventoryUpdate)
	assert.True(t, res.InventoryUpdate.Success)
	stored := f.get(t, receipt)
	assert.False(t, stored.InventoryApplied)
	assert.Empty(t, stored.AppliedDeltas)
	f.requireQty(t, partP, locationA, "0")
	f.requireQty(t, partQ, locationA, "0")
}

func TestTransition_RepuestoSinControlDeStockSeOmite(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("3"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "1", "", ""), line(partNoStk, "100", "", "")))

	res := f.move(t, id, entity.StatusApproved)

	require.NotNil(t, res.InventoryUpdate)
	assert.True(t, res.InventoryUpdate.Success)
	assert.Equal(t, 1, res.InventoryUpdate.TotalUpdated)
	assert.Contains(t, res.InventoryUpdate.Message, "sin control de stock")
	f.requireQty(t, partP, defaultLoc, "2")
	f.requireQty(t, partNoStk, defaultLoc, "0")
}

func TestTransition_FalloDeSistemaHaceRollback(t *testing.T) {
	f := newFixtureWith(t, failingAt(2, errDBDown), nil)
	f.store.SetStock(partP, defaultLoc, d("10"))
	f.store.SetStock(partQ, defaultLoc, d("10"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "4", "", ""), line(partQ, "1", "", "")))

	_, err := f.transition.Transition(context.Background(), inventory.TransitionInput{
		TransactionID: id, Status: entity.StatusApproved, UserID: testUser,
	})

	require.ErrorIs(t, err, errDBDown)
	f.requireQty(t, partP, defaultLoc, "10")
	f.requireQty(t, partQ, defaultLoc, "10")
	stored := f.get(t, id)
	assert.Equal(t, entity.StatusPending, stored.Status)
	assert.False(t, stored.InventoryApplied)
	assert.Empty(t, stored.AppliedDeltas)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		f.metrics.TransitionsTotal.WithLabelValues("pending", "approved", metrics.OutcomeError)))
}

func TestTransition_TrasladoCompensaPrimerTramo(t *testing.T) {
	// la llamada 2 es el tramo de entrada del traslado
	f := newFixtureWith(t, failingAt(2, domain.ErrNotFound), nil)
	f.store.SetStock(partP, locationA, d("5"))
	id := f.pending(t, request(entity.TransactionTypeTransfer, line(partP, "3", locationA, locationB)))

	res := f.move(t, id, entity.StatusApproved)

	require.NotNil(t, res.InventoryUpdate)
	assert.False(t, res.InventoryUpdate.Success)
	f.requireQty(t, partP, locationA, "5")
	f.requireQty(t, partP, locationB, "0")
	assert.Empty(t, f.get(t, id).AppliedDeltas)
}

func TestTransition_ContextoCanceladoNoMuta(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("10"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "4", "", "")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.transition.Transition(ctx, inventory.TransitionInput{TransactionID: id, Status: entity.StatusApproved, UserID: testUser})

	assert.ErrorIs(t, err, context.Canceled)
	f.requireQty(t, partP, defaultLoc, "10")
	assert.Equal(t, entity.StatusPending, f.get(t, id).Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_AprobacionesConcurrentesAplicanUnaVez(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("100"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "7", "", "")))

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.transition.Transition(context.Background(), inventory.TransitionInput{
				TransactionID: id, Status: entity.StatusApproved, UserID: testUser,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInvalidTransition):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, rejected)
	f.requireQty(t, partP, defaultLoc, "93")
}

func TestTransition_SalidasConcurrentesNoSobregiran(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("10"))
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = f.pending(t, request(entity.TransactionTypeIssue, line(partP, "3", "", "")))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = f.transition.Transition(context.Background(), inventory.TransitionInput{
				TransactionID: id, Status: entity.StatusApproved, UserID: testUser,
			})
		}(id)
	}
	wg.Wait()

	approved := 0
	for _, id := range ids {
		if f.get(t, id).Status == entity.StatusApproved {
			approved++
		}
	}
	assert.Equal(t, 3, approved, "10 unidades alcanzan para tres salidas de 3")
	f.requireQty(t, partP, defaultLoc, "1")
}

// ──────────────────────────────────────────────────────────────────────────────
// Auditoría y métricas
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_NotificaAuditoria(t *testing.T) {
	notifier := newRecordingNotifier(nil)
	f := newFixtureWith(t, nil, notifier)
	f.store.SetStock(partP, defaultLoc, d("10"))
	id := f.create(t, request(entity.TransactionTypeIssue, line(partP, "4", "", "")))

	f.move(t, id, entity.StatusPending)
	ev := waitEvent(t, notifier)
	assert.Equal(t, id, ev.TransactionID)
	assert.Equal(t, entity.StatusDraft, ev.FromStatus)
	assert.Equal(t, entity.StatusPending, ev.ToStatus)
	assert.Nil(t, ev.InventoryUpdate)

	f.move(t, id, entity.StatusApproved)
	ev = waitEvent(t, notifier)
	assert.Equal(t, entity.StatusApproved, ev.ToStatus)
	require.NotNil(t, ev.InventoryUpdate)
	assert.Equal(t, 1, ev.InventoryUpdate.TotalUpdated)
}

func TestTransition_FalloDeAuditoriaNoBloquea(t *testing.T) {
	notifier := newRecordingNotifier(errors.New("stream no disponible"))
	f := newFixtureWith(t, nil, notifier)
	id := f.create(t, request(entity.TransactionTypeReceipt, line(partP, "1", "", "")))

	res := f.move(t, id, entity.StatusPending)

	assert.Equal(t, entity.StatusPending, res.Transaction.Status)
	waitEvent(t, notifier)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.AuditFailuresTotal) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestTransition_MetricasDeConciliacion(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(partP, defaultLoc, d("10"))
	id := f.pending(t, request(entity.TransactionTypeIssue, line(partP, "1", "", ""), line(partNoStk, "1", "", "")))

	f.move(t, id, entity.StatusApproved)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReconciledItems.WithLabelValues("apply", "updated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.ReconciledItems.WithLabelValues("apply", "skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		f.metrics.TransitionsTotal.WithLabelValues("pending", "approved", metrics.OutcomeCommitted)))
}

func TestTransition_RegistraHistorialEnNotasInternas(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, request(entity.TransactionTypeReceipt, line(partP, "1", "", "")))

	_, err := f.transition.Transition(context.Background(), inventory.TransitionInput{
		TransactionID: id, Status: entity.StatusPending, UserID: "u-9", Notes: "listo para revisión",
	})
	require.NoError(t, err)

	assert.Equal(t, "[2025-03-15T09:30:00Z] estado draft -> pending por u-9: listo para revisión", f.get(t, id).InternalNotes)
}

func waitEvent(t *testing.T, n *recordingNotifier) inventory.AuditEvent {
	t.Helper()
	select {
	case ev := <-n.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no llegó el evento de auditoría")
		return inventory.AuditEvent{}
	}
}
