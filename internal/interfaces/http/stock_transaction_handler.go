package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Repuestos-api/internal/application/dto"
	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain"
	"github.com/jhoicas/Repuestos-api/internal/domain/entity"
	"github.com/jhoicas/Repuestos-api/pkg/logger"
)

// Roles que pueden llevar una transacción a cada estado. draft -> pending queda abierto a todos.
var transitionRoles = map[entity.TransactionStatus][]string{
	entity.StatusApproved:  {entity.RoleAdmin, entity.RoleSupervisor, entity.RoleAlmacenista},
	entity.StatusCompleted: {entity.RoleAdmin, entity.RoleSupervisor, entity.RoleAlmacenista},
	entity.StatusCancelled: {entity.RoleAdmin, entity.RoleSupervisor},
}

func canTransitionTo(role string, status entity.TransactionStatus) bool {
	roles, ok := transitionRoles[status]
	return !ok || hasRole(role, roles...)
}

// StockTransactionHandler maneja las peticiones HTTP de transacciones de stock (protegido).
type StockTransactionHandler struct {
	uc         *inventory.StockTransactionUseCase
	transition *inventory.TransitionUseCase
	log        *logger.Logger
}

// NewStockTransactionHandler construye el handler.
func NewStockTransactionHandler(uc *inventory.StockTransactionUseCase, transition *inventory.TransitionUseCase, log *logger.Logger) *StockTransactionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &StockTransactionHandler{uc: uc, transition: transition, log: log}
}

// Create godoc
// @Summary      Crear transacción de stock (borrador)
// @Tags         stock-transactions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateStockTransactionRequest  true  "tipo, líneas y ubicaciones"
// @Success      201   {object}  dto.StockTransactionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/stock-transactions [post]
func (h *StockTransactionHandler) Create(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateStockTransactionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Department != "" && !canAccessDepartment(c, in.Department) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "no puede registrar transacciones de otro departamento"})
	}
	out, err := h.uc.Create(c.UserContext(), userID, GetDepartment(c), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener transacción de stock
// @Tags         stock-transactions
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la transacción"
// @Success      200  {object}  dto.StockTransactionResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock-transactions/{id} [get]
func (h *StockTransactionHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// List godoc
// @Summary      Listar transacciones de stock
// @Tags         stock-transactions
// @Security     Bearer
// @Produce      json
// @Param        status            query  string  false  "draft|pending|approved|completed|cancelled"
// @Param        transaction_type  query  string  false  "receipt|issue|transfer|adjustment|scrap"
// @Param        department        query  string  false  "solo admin puede consultar otros departamentos"
// @Param        limit             query  int     false  "máximo 100"
// @Param        offset            query  int     false  "desplazamiento"
// @Success      200  {object}  dto.StockTransactionListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock-transactions [get]
func (h *StockTransactionHandler) List(c *fiber.Ctx) error {
	var in dto.StockTransactionFilterRequest
	if err := c.QueryParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	if GetRole(c) != entity.RoleAdmin {
		in.Department = GetDepartment(c)
	}
	out, err := h.uc.List(c.UserContext(), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// UpdateItems godoc
// @Summary      Reemplazar líneas de una transacción en borrador
// @Tags         stock-transactions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID de la transacción"
// @Param        body  body  dto.UpdateItemsRequest  true  "líneas"
// @Success      200   {object}  dto.StockTransactionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock-transactions/{id}/items [put]
func (h *StockTransactionHandler) UpdateItems(c *fiber.Ctx) error {
	var in dto.UpdateItemsRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.UpdateItems(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// AddNotes godoc
// @Summary      Agregar notas (cualquier estado)
// @Tags         stock-transactions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "ID de la transacción"
// @Param        body  body  dto.AddNotesRequest  true  "notas"
// @Success      200   {object}  dto.StockTransactionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/stock-transactions/{id}/notes [post]
func (h *StockTransactionHandler) AddNotes(c *fiber.Ctx) error {
	var in dto.AddNotesRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.AddNotes(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(out)
}

// UpdateStatus godoc
// @Summary      Cambiar estado de una transacción de stock
// @Description  Al aprobar o completar concilia el inventario una sola vez; al cancelar revierte lo aplicado.
// @Tags         stock-transactions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID de la transacción"
// @Param        body  body  dto.UpdateStatusRequest  true  "status, notes"
// @Success      200   {object}  dto.StatusUpdateResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.InsufficientInventoryResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/stock-transactions/{id}/status [patch]
func (h *StockTransactionHandler) UpdateStatus(c *fiber.Ctx) error {
	var in dto.UpdateStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	status := entity.TransactionStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "estado desconocido"})
	}
	if !canTransitionTo(GetRole(c), status) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol sin permiso para pasar a " + string(status)})
	}
	res, err := h.transition.Transition(c.UserContext(), inventory.TransitionInput{
		TransactionID: c.Params("id"),
		Status:        status,
		Notes:         strings.TrimSpace(in.Notes),
		UserID:        GetUserID(c),
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(inventory.ToStatusUpdateResponse(res))
}

// writeError traduce errores de dominio a respuestas HTTP.
func (h *StockTransactionHandler) writeError(c *fiber.Ctx, err error) error {
	var (
		insufficient *domain.InsufficientInventoryError
		transition   *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusConflict).JSON(dto.InsufficientInventoryResponse{
			Code:    "INSUFFICIENT_INVENTORY",
			Message: "existencias insuficientes para la salida solicitada",
			Issues:  inventory.ToShortfalls(insufficient.Issues),
		})
	case errors.As(err, &transition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: transition.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "transacción o repuesto no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	case errors.Is(err, domain.ErrNotEditable):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_EDITABLE", Message: "solo se editan transacciones en borrador"})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "la transacción cambió, reintente"})
	}
	h.log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno, reintente"})
}
