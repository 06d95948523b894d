package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	StockTransactionUC *inventory.StockTransactionUseCase
	TransitionUC       *inventory.TransitionUseCase
	ReplenishmentUC    *inventory.ReplenishmentUseCase
	JWTSecret          string
	Logger             *logger.Logger
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	txHandler := NewStockTransactionHandler(deps.StockTransactionUC, deps.TransitionUC, deps.Logger)
	scoped := RequireTransactionScope(deps.StockTransactionUC)

	txs := api.Group("/stock-transactions")
	txs.Post("/", txHandler.Create)
	txs.Get("/", txHandler.List)
	txs.Get("/:id", scoped, txHandler.GetByID)
	txs.Put("/:id/items", scoped, txHandler.UpdateItems)
	txs.Post("/:id/notes", scoped, txHandler.AddNotes)
	txs.Patch("/:id/status", scoped, txHandler.UpdateStatus)

	partHandler := NewPartHandler(deps.StockTransactionUC, deps.ReplenishmentUC)
	parts := api.Group("/parts")
	parts.Get("/replenishment", RequireRole(replenishmentRoles...), partHandler.GetReplenishmentList)
	parts.Get("/:id/stock", partHandler.GetStock)
}
