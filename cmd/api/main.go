package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-stock-ledger/internal/config"
	"go-stock-ledger/internal/handler"
	"go-stock-ledger/internal/model"
	"go-stock-ledger/internal/repository"
	"go-stock-ledger/internal/service"
	"go-stock-ledger/internal/ws"
	"go-stock-ledger/pkg/database"
	"go-stock-ledger/pkg/jwt"
	"go-stock-ledger/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// 1. Load Env
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	db, err := database.ConnectDB(database.Options{
		DSN:             cfg.DSN(),
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		SlowThreshold:   cfg.DBSlowThreshold,
		LogLevel:        gormlogger.Warn,
	}, log)
	if err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			return err
		}
	}

	// 3. Repositories
	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	checkRepo := repository.NewInventoryCheckRepo(db)
	userRepo := repository.NewUserRepo(db)

	var idem *repository.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, idempotency keys disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			idem = repository.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		}
	}

	// 4. WebSocket hub
	hub := ws.NewHub(log)

	// 5. Services
	ledger := service.NewStockLedger(productRepo, txRepo, log)
	issuer := jwt.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(userRepo, issuer, hub, log)
	userService := service.NewUserService(userRepo, log)

	if _, created, err := userService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Warn("failed to seed admin user", zap.Error(err))
	} else if created {
		log.Info("admin user created", zap.String("email", cfg.AdminEmail))
	}

	handlers := handler.Handlers{
		Auth: handler.NewAuthHandler(authService, userService),
		Inventory: handler.NewInventoryHandler(
			service.NewInventoryService(productRepo, txRepo, ledger, db, hub, log),
			service.NewApprovalService(txRepo, ledger, db, hub, log),
		),
		Orders:    handler.NewOrderHandler(service.NewOrderService(productRepo, orderRepo, txRepo, ledger, idem, db, hub, log)),
		Checks:    handler.NewInventoryCheckHandler(service.NewStocktakeService(productRepo, checkRepo, ledger, db, hub, log)),
		Dashboard: handler.NewDashboardHandler(service.NewDashboardService(txRepo)),
	}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Stock Ledger v1.0",
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	handler.SetupRoutes(app, handlers, authService)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		if !hub.Join(c) {
			return
		}
		defer hub.Leave(c)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 7. Serve until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	return g.Wait()
}
