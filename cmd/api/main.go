package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/service-desk/internal/api/http"
	"github.com/spec-kit/service-desk/internal/api/http/handlers"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/config"
	"github.com/spec-kit/service-desk/internal/directory"
	"github.com/spec-kit/service-desk/internal/notify"
	"github.com/spec-kit/service-desk/internal/observability"
	"github.com/spec-kit/service-desk/internal/persistence"
	"github.com/spec-kit/service-desk/internal/repository"
	"github.com/spec-kit/service-desk/internal/service"
	"github.com/spec-kit/service-desk/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var store storage.FileStore
	if cfg.Storage.Endpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Fatal("failed to init object store", zap.Error(err))
		}
		store = minioStore
	} else {
		logger.Warn("no object store configured; attachments kept in memory")
		store = storage.NewMemoryStore()
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	recruitmentRepo := repository.NewRecruitmentRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	teamMessageRepo := repository.NewTeamMessageRepository(pool)
	materialRepo := repository.NewMaterialRepository(pool)
	loanRepo := repository.NewLoanRepository(pool)

	var mirror = redis.Client
	if !cfg.Notification.RedisMirror {
		mirror = nil
	}
	sink := notify.NewSink(notificationRepo, mirror, cfg.Notification.QueueSize, cfg.Notification.RedisListLimit, logger)
	defer sink.Close()

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	parser := directory.NewParser(cfg.Catalog.CapabilityMap)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  messageRepo,
		UserRepo:     userRepo,
		MaterialRepo: materialRepo,
		LoanRepo:     loanRepo,
		Notifier:     sink,
		Services:     cfg.Catalog.Services,
		Logger:       logger,
	})
	recruitmentService := service.NewRecruitmentService(service.RecruitmentDependencies{
		RecruitmentRepo: recruitmentRepo,
		Tickets:         ticketService,
		UserRepo:        userRepo,
		Store:           store,
		Notifier:        sink,
		Logger:          logger,
	})
	notificationService := service.NewNotificationService(notificationRepo, teamMessageRepo)
	inventoryService := service.NewInventoryService(materialRepo, loanRepo, nil)
	accountService := service.NewAccountService(service.AccountDependencies{
		UserRepo:   userRepo,
		TicketRepo: ticketRepo,
		Parser:     parser,
		Tokens:     tokens,
		AuthCfg:    cfg.Auth,
		Logger:     logger,
	})

	authMiddleware := auth.NewMiddleware(tokens, userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Accounts:       handlers.NewAccountsHandler(accountService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Recruitments:   handlers.NewRecruitmentsHandler(recruitmentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Inventory:      handlers.NewInventoryHandler(inventoryService),
		Files:          handlers.NewFilesHandler(store),
		Metrics:        metrics,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
