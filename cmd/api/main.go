package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/Repuestos-api/internal/application/inventory"
	"github.com/jhoicas/Repuestos-api/internal/domain/repository"
	"github.com/jhoicas/Repuestos-api/internal/infrastructure/audit"
	"github.com/jhoicas/Repuestos-api/internal/infrastructure/memory"
	"github.com/jhoicas/Repuestos-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/Repuestos-api/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/Repuestos-api/internal/interfaces/http"
	"github.com/jhoicas/Repuestos-api/pkg/config"
	"github.com/jhoicas/Repuestos-api/pkg/logger"
	"github.com/jhoicas/Repuestos-api/pkg/metrics"
)

// storage puertos que cada driver de almacenamiento debe proveer.
type storage struct {
	runner        inventory.TxRunner
	transactions  repository.StockTransactionRepository
	stock         repository.PartStockRepository
	replenishment repository.ReplenishmentReader
	close         func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store := openStorage(ctx, cfg, log)
	defer store.close()

	var (
		locker   inventory.Locker = memory.NewKeyedLocker()
		notifier inventory.AuditNotifier
	)
	logNotifier := audit.NewLogNotifier(log.Component("audit"))
	notifier = logNotifier
	if cfg.Redis.Enabled() {
		rdb, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = infraredis.NewLocker(rdb, cfg.Lock.TTL, cfg.Lock.RetryDelay)
		notifier = audit.Multi{logNotifier, infraredis.NewAuditPublisher(rdb, cfg.Audit.Stream, cfg.Audit.MaxLen)}
		log.Info().Str("addr", cfg.Redis.Addr).Str("stream", cfg.Audit.Stream).Msg("lock distribuido y auditoría en Redis")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	stockTxUC := inventory.NewStockTransactionUseCase(store.runner, store.transactions, store.stock)
	transitionUC := inventory.NewTransitionUseCase(store.runner, locker, notifier, log.Component("transition"), m)
	replenishmentUC := inventory.NewReplenishmentUseCase(store.replenishment)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Repuestos API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		StockTransactionUC: stockTxUC,
		TransitionUC:       transitionUC,
		ReplenishmentUC:    replenishmentUC,
		JWTSecret:          cfg.JWT.Secret,
		Logger:             log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage {
	if cfg.Storage.Driver == "memory" {
		mem := memory.NewStore()
		log.Warn().Msg("almacenamiento en memoria: los datos se pierden al reiniciar")
		if cfg.Storage.SeedFile != "" {
			n, err := mem.LoadSeedFile(cfg.Storage.SeedFile)
			if err != nil {
				log.Fatal().Err(err).Msg("carga inicial en memoria")
			}
			log.Info().Int("parts", n).Str("file", cfg.Storage.SeedFile).Msg("repuestos cargados")
		}
		return storage{
			runner:        mem,
			transactions:  mem.Transactions(),
			stock:         mem.Stock(),
			replenishment: mem,
			close:         func() {},
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	if cfg.Storage.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migración")
		}
	}
	stockRepo := postgres.NewPartStockRepository(pool)
	return storage{
		runner:        postgres.NewTxRunner(pool),
		transactions:  postgres.NewStockTransactionRepository(pool),
		stock:         stockRepo,
		replenishment: stockRepo,
		close:         pool.Close,
	}
}
