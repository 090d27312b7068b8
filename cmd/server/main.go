package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/catalog"
	"github.com/example/bloomstem/internal/config"
	"github.com/example/bloomstem/internal/database"
	"github.com/example/bloomstem/internal/handlers"
	"github.com/example/bloomstem/internal/logger"
	"github.com/example/bloomstem/internal/routes"
	"github.com/example/bloomstem/internal/services"
	"github.com/example/bloomstem/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		zlog.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}

	deps, notifier, err := buildServices(cfg, kv, zlog)
	if err != nil {
		zlog.Fatal("failed to build services", zap.Error(err))
	}
	notifier.Start()

	app := fiber.New(fiber.Config{
		AppName:      "Bloomstem Backend",
		ErrorHandler: handlers.ErrorHandler(zlog),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Register(app, cfg, deps)

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			zlog.Error("fiber shutdown error", zap.Error(err))
		}
	}()

	zlog.Info("starting server", zap.String("port", cfg.AppPort), zap.String("store", cfg.StoreDriver))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		zlog.Error("fiber.Listen error", zap.Error(err))
	}

	notifier.Close()
	stats := notifier.Stats()
	zlog.Info("notifications drained",
		zap.Int64("sent", stats.Sent), zap.Int64("failed", stats.Failed), zap.Int64("dropped", stats.Dropped))

	if err := kv.Close(); err != nil {
		zlog.Error("store close error", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db), nil
	case config.StoreDriverRedis:
		return store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	case config.StoreDriverMemory:
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func buildServices(cfg *config.Config, kv store.Store, zlog *zap.Logger) (routes.Deps, *services.Notifier, error) {
	pricing := services.Pricing{
		ServiceChargePct: cfg.ServiceChargePct,
		DeliveryFee:      cfg.DeliveryFee,
		AccrualPct:       cfg.AccrualPct,
		RedeemCapPct:     cfg.RedeemCapPct,
	}

	schedule, err := services.NewSlotSchedule(cfg.DeliveryOpen, cfg.DeliveryClose, cfg.DeliverySlotStep, cfg.DeliveryLeadTime, cfg.Location())
	if err != nil {
		return routes.Deps{}, nil, fmt.Errorf("delivery schedule: %w", err)
	}

	retry := services.DefaultRetryConfig()
	retry.MaxAttempts = cfg.NotifyRetries

	telegram := services.NewTelegramService(cfg.TelegramAPIURL, cfg.TelegramBotToken)
	if cfg.TelegramBotToken == "" {
		zlog.Warn("TELEGRAM_BOT_TOKEN not set, notifications are disabled")
	}
	notifier := services.NewNotifier(telegram, services.NotifierConfig{
		StaffChatID: cfg.TelegramStaffChat,
		Timeout:     cfg.NotifyTimeout,
		Retry:       retry,
		QueueSize:   cfg.NotifyQueueSize,
		Workers:     cfg.NotifyWorkers,
	}, zlog)

	products := catalog.Default()
	gate := services.NewAdminGate(cfg.AdminIDs)
	ledger := services.NewLedger(kv, pricing, zlog)

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Store:    kv,
		Catalog:  products,
		Ledger:   ledger,
		Notifier: notifier,
		Schedule: schedule,
		Pricing:  pricing,
		Gate:     gate,
		NodeID:   cfg.NodeID,
		Log:      zlog,
	})
	if err != nil {
		return routes.Deps{}, nil, err
	}

	return routes.Deps{
		Store:    kv,
		Catalog:  products,
		Orders:   orders,
		Admin:    services.NewAdminService(orders, ledger, gate, zlog),
		Ledger:   ledger,
		Reviews:  services.NewReviewService(kv, products, zlog),
		Notifier: notifier,
		Log:      zlog,
	}, notifier, nil
}
