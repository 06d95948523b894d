// Package metrics expone las métricas Prometheus del motor de transacciones de stock.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultados de una transición.
const (
	OutcomeCommitted    = "committed"
	OutcomePartial      = "partial"
	OutcomeRejected     = "rejected"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"
)

// Metrics agrupa los colectores. Un *Metrics nil es válido y no registra nada.
type Metrics struct {
	TransitionsTotal   *prometheus.CounterVec // labels: from, to, outcome
	ReconciledItems    *prometheus.CounterVec // labels: operation (apply|reverse), result (updated|failed|skipped)
	TransitionDuration prometheus.Histogram
	AuditFailuresTotal prometheus.Counter
}

// New registra los colectores en reg (usar prometheus.NewRegistry() en tests).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_transaction_transitions_total",
			Help: "Transiciones de estado solicitadas por origen, destino y resultado.",
		}, []string{"from", "to", "outcome"}),
		ReconciledItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_reconciled_items_total",
			Help: "Líneas procesadas por el conciliador de inventario.",
		}, []string{"operation", "result"}),
		TransitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stock_transaction_transition_duration_seconds",
			Help:    "Duración de una transición incluyendo validación y conciliación.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		AuditFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "stock_transaction_audit_failures_total",
			Help: "Notificaciones de auditoría fallidas.",
		}),
	}
}

// ObserveTransition registra el resultado y la duración de una transición.
func (m *Metrics) ObserveTransition(from, to, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to, outcome).Inc()
	m.TransitionDuration.Observe(seconds)
}

// ObserveReconciliation suma los contadores de líneas de una conciliación.
func (m *Metrics) ObserveReconciliation(operation string, updated, failed, skipped int) {
	if m == nil {
		return
	}
	m.ReconciledItems.WithLabelValues(operation, "updated").Add(float64(updated))
	m.ReconciledItems.WithLabelValues(operation, "failed").Add(float64(failed))
	m.ReconciledItems.WithLabelValues(operation, "skipped").Add(float64(skipped))
}

// IncAuditFailure cuenta una notificación de auditoría fallida.
func (m *Metrics) IncAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailuresTotal.Inc()
}
