package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
)

// Roles que consultan la lista de reposición; el técnico solo consume repuestos.
var replenishmentRoles = []string{entity.RoleAdmin, entity.RoleSupervisor, entity.RoleAlmacenista}

// PartHandler consultas de existencias y reposición de repuestos (protegido).
type PartHandler struct {
	uc            *inventory.StockTransactionUseCase
	replenishment *inventory.ReplenishmentUseCase
}

func NewPartHandler(uc *inventory.StockTransactionUseCase, replenishment *inventory.ReplenishmentUseCase) *PartHandler {
	return &PartHandler{uc: uc, replenishment: replenishment}
}

// GetStock godoc
// @Summary      Existencias de un repuesto por ubicación
// @Tags         parts
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del repuesto"
// @Success      200  {object}  dto.PartStockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/parts/{id}/stock [get]
func (h *PartHandler) GetStock(c *fiber.Ctx) error {
	out, err := h.uc.GetPartStock(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "repuesto no encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(out)
}

// GetReplenishmentList godoc
// @Summary      Lista de reposición
// @Description  Repuestos de stock por debajo del mínimo con la cantidad sugerida de pedido.
// @Tags         parts
// @Security     Bearer
// @Produce      json
// @Param        department  query  string  false  "Solo admin puede consultar otros departamentos. Vacío = todos (admin)."
// @Success      200  {array}   dto.ReplenishmentSuggestionDTO
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/parts/replenishment [get]
func (h *PartHandler) GetReplenishmentList(c *fiber.Ctx) error {
	department := c.Query("department")
	if GetRole(c) != entity.RoleAdmin {
		department = GetDepartment(c)
	}
	list, err := h.replenishment.GenerateReplenishmentList(c.UserContext(), department)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(fiber.Map{
		"total":          len(list),
		"replenishments": list,
	})
}
