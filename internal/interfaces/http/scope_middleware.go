package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
)

// transactionLoader contrato mínimo para verificar el alcance de una transacción.
// Lo implementa *inventory.StockTransactionUseCase.
type transactionLoader interface {
	Get(ctx context.Context, id string) (*entity.StockTransaction, error)
}

// RequireTransactionScope verifica que la transacción :id pertenezca al departamento del token.
// Debe usarse DESPUÉS de AuthMiddleware.
//   - 404 si la transacción no existe.
//   - 403 si es de otro departamento (admin pasa siempre).
//   - 503 si falla la consulta.
func RequireTransactionScope(loader transactionLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tx, err := loader.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "transacción no encontrada"})
			}
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "SCOPE_CHECK_FAILED",
				Message: "no se pudo verificar el acceso, intente más tarde",
			})
		}
		if !canAccessDepartment(c, tx.Department) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "la transacción pertenece a otro departamento"})
		}
		return c.Next()
	}
}
