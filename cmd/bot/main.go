package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/blist-xyz/review-service/internal/api/http"
	"github.com/blist-xyz/review-service/internal/api/http/handlers"
	"github.com/blist-xyz/review-service/internal/auth"
	"github.com/blist-xyz/review-service/internal/commands"
	"github.com/blist-xyz/review-service/internal/config"
	"github.com/blist-xyz/review-service/internal/events"
	"github.com/blist-xyz/review-service/internal/gateway"
	"github.com/blist-xyz/review-service/internal/observability"
	"github.com/blist-xyz/review-service/internal/persistence"
	"github.com/blist-xyz/review-service/internal/repository"
	"github.com/blist-xyz/review-service/internal/service"
	"github.com/blist-xyz/review-service/internal/tracker"
	"github.com/blist-xyz/review-service/internal/worker"
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

	siteDB, err := persistence.NewPostgres(ctx, "site", cfg.SiteDB, logger)
	if err != nil {
		logger.Fatal("failed to connect site store", zap.Error(err))
	}
	defer siteDB.Close()

	modDB, err := persistence.NewPostgres(ctx, "moderation", cfg.ModDB, logger)
	if err != nil {
		logger.Fatal("failed to connect moderation store", zap.Error(err))
	}
	defer modDB.Close()

	if cfg.SiteDB.RunMigrations {
		if err := persistence.RunMigrations(ctx, siteDB.PoolHandle(), cfg.SiteDB.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run site migrations", zap.Error(err))
		}
	}
	if cfg.ModDB.RunMigrations {
		if err := persistence.RunMigrations(ctx, modDB.PoolHandle(), cfg.ModDB.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run moderation migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	botRepo := repository.NewBotRepository(siteDB.PoolHandle())
	userRepo := repository.NewUserRepository(siteDB.PoolHandle())
	levelingRepo := repository.NewLevelingRepository(siteDB.PoolHandle())
	staffRepo := repository.NewStaffRepository(modDB.PoolHandle())
	muteRepo := repository.NewMuteRepository(modDB.PoolHandle())
	actionRepo := repository.NewActionRepository(modDB.PoolHandle())

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	discord, err := gateway.NewDiscord(cfg.Discord, dispatcher, metrics, logger)
	if err != nil {
		logger.Fatal("failed to build gateway session", zap.Error(err))
	}

	reviewTracker := tracker.New()
	defer reviewTracker.Stop()

	notifier := service.NewNotificationService(discord, cfg.Discord, metrics, logger)

	reviews := service.NewReviewService(service.ReviewDependencies{
		BotRepo:    botRepo,
		UserRepo:   userRepo,
		StaffRepo:  staffRepo,
		ActionRepo: actionRepo,
		Chat:       discord,
		Notifier:   notifier,
		Dispatcher: dispatcher,
		Discord:    cfg.Discord,
		SiteURL:    cfg.Review.SiteBaseURL,
		Logger:     logger,
	})
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Tracker:  reviewTracker,
		Chat:     discord,
		BotRepo:  botRepo,
		MuteRepo: muteRepo,
		Notifier: notifier,
		Discord:  cfg.Discord,
		SiteURL:  cfg.Review.SiteBaseURL,
		Logger:   logger,
	})
	membership := service.NewMembershipService(service.MembershipDependencies{
		Tracker:   reviewTracker,
		Chat:      discord,
		BotRepo:   botRepo,
		UserRepo:  userRepo,
		StaffRepo: staffRepo,
		Notifier:  notifier,
		Discord:   cfg.Discord,
		Logger:    logger,
	})
	staff := service.NewStaffService(staffRepo, discord, notifier, cfg.Discord, logger)
	leveling := service.NewLevelingService(service.LevelingDependencies{
		LevelingRepo: levelingRepo,
		UserRepo:     userRepo,
		Cache:        redis,
		Chat:         discord,
		Notifier:     notifier,
		Discord:      cfg.Discord,
		Leveling:     cfg.Leveling,
		Logger:       logger,
	})

	registry := commands.NewRegistry(commands.Dependencies{
		Chat:     discord,
		Tracker:  reviewTracker,
		Reviews:  reviews,
		Life:     lifecycle,
		Staff:    staff,
		Leveling: leveling,
		Actions:  actionRepo,
		Notifier: notifier,
		Metrics:  metrics,
		Config:   cfg,
		Logger:   logger,
	})

	lifecycle.RegisterHandlers(dispatcher)
	membership.RegisterHandlers(dispatcher)
	leveling.RegisterHandlers(dispatcher)
	registry.RegisterHandlers(dispatcher)

	var readyOnce sync.Once
	discord.OnReady = func() {
		readyOnce.Do(func() {
			if err := lifecycle.ReconcileOnStartup(ctx); err != nil {
				logger.Error("startup reconciliation failed", zap.Error(err))
			}
			reviews.RefreshPresence(ctx)
		})
	}

	if err := discord.Open(); err != nil {
		logger.Fatal("failed to open gateway connection", zap.Error(err))
	}
	defer discord.Close() //nolint:errcheck

	var wg sync.WaitGroup
	runWorker := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	runWorker(worker.NewSweepWorker(reviewTracker, discord, notifier, cfg.Discord, cfg.Review, logger).Run)
	runWorker(worker.NewPresenceWorker(discord, botRepo, userRepo, redis, cfg.Review, logger).Run)
	runWorker(worker.NewStatusWorker(discord, botRepo, notifier, cfg.Discord, cfg.Review, logger).Run)

	tokens := auth.NewTokenManager(cfg.API.JWTSecret, 0)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, 10*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, siteDB, modDB, redis),
		Reviews:        handlers.NewReviewHandler(reviews, reviewTracker, botRepo, userRepo, redis, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.API.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
	wg.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
