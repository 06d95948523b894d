package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio.
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrNotEditable       = errors.New("la transacción ya no es editable")
)

// InvalidTransitionError indica que el par (estado actual, nuevo estado) no existe en el grafo.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transición de estado no permitida: %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// StockShortfall describe un repuesto cuya existencia no cubre la salida solicitada.
type StockShortfall struct {
	PartID    string
	Location  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

// InsufficientInventoryError lo produce la validación de disponibilidad; no hubo mutación.
type InsufficientInventoryError struct {
	Issues []StockShortfall
}

func (e *InsufficientInventoryError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s (requerido %s, disponible %s)", is.PartID, is.Required, is.Available))
	}
	return "inventario insuficiente: " + strings.Join(parts, ", ")
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientStock }
