package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quickcart/internal/cache"
	"quickcart/internal/config"
	"quickcart/internal/database"
	"quickcart/internal/handler"
	"quickcart/internal/monitor"
	"quickcart/internal/redis"
	"quickcart/internal/repository"
	"quickcart/internal/scheduler"
	"quickcart/internal/service/auth"
	"quickcart/internal/service/idempotency"
	"quickcart/internal/service/inventory"
	"quickcart/internal/service/order"
	"quickcart/internal/service/outbox"
	"quickcart/internal/service/payment"
	"quickcart/internal/utils"
	"quickcart/pkg/lock"
	"quickcart/pkg/log"
	"quickcart/pkg/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.GlobalConfig = cfg

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	if err := database.Init(cfg); err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	if err := redis.Init(cfg); err != nil {
		log.WithError(err).Fatal("failed to initialize redis")
	}
	defer redis.Close()

	db := database.GetDB()
	redisClient := redis.GetClient()

	idGen, err := snowflake.NewIDGenerator(1)
	if err != nil {
		log.WithError(err).Fatal("failed to create id generator")
	}

	responseCache, err := cache.NewResponseCache(cfg.Cache.TTL, 64)
	if err != nil {
		log.WithError(err).Fatal("failed to create response cache")
	}
	defer responseCache.Close()

	metrics := monitor.NewCollector()

	// Repositories
	productRepo := repository.NewProductRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	userRepo := repository.NewUserRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)

	serializable := database.Serializable(db)

	// Services
	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessExpire, cfg.JWT.RefreshExpire)
	authService := auth.NewService(userRepo, tokenRepo, jwtManager)

	idempotencyService := idempotency.NewService(idempotencyRepo, responseCache, cfg.Idempotency.TTL)

	inventoryService := inventory.NewService(productRepo, reservationRepo, serializable,
		cfg.Checkout.ReservationTTL, cfg.Checkout.SweepBatchSize)

	outboxService := outbox.NewService(outboxRepo, outbox.NewRedisPublisher(redisClient), outbox.Config{
		BatchSize:  cfg.Outbox.BatchSize,
		MaxRetries: cfg.Outbox.MaxRetries,
		Retention:  cfg.Outbox.Retention,
		Metrics:    metrics,
	})

	orderService := order.NewService(orderRepo, productRepo, inventoryService, outboxService,
		serializable, idGen, order.Config{
			MinOrderAmount:    cfg.Checkout.MinOrderAmount,
			EstimatedDelivery: cfg.Checkout.EstimatedDelivery,
		})

	lifecycleService := order.NewLifecycleService(orderRepo, productRepo, orderService, serializable,
		order.LifecycleConfig{
			UnpaidCancelAfter:  cfg.Lifecycle.UnpaidCancelAfter,
			ConfirmedToPacked:  cfg.Lifecycle.ConfirmedToPacked,
			PackedToDispatched: cfg.Lifecycle.PackedToDispatched,
			BatchSize:          cfg.Lifecycle.BatchSize,
		})

	paymentService := payment.NewService(webhookRepo, orderService, cfg.Payment.WebhookSecrets)

	// Background sweeps, one runner per cluster via redis locks.
	locks := lock.NewRedisService(redisClient)
	sched := scheduler.New(locks, metrics)
	sched.Register(scheduler.Job{
		Name:     "outbox-dispatch",
		Interval: cfg.Outbox.DispatchInterval,
		LockTTL:  cfg.Outbox.LockTTL,
		Run: func(ctx context.Context) error {
			_, err := outboxService.Dispatch(ctx)
			return err
		},
	})
	sched.Register(scheduler.Job{
		Name:     "reservation-expiry",
		Interval: cfg.Checkout.SweepInterval,
		Run: func(ctx context.Context) error {
			_, err := inventoryService.ReleaseExpired(ctx)
			return err
		},
	})
	sched.Register(scheduler.Job{
		Name:     "auto-cancel-unpaid",
		Interval: cfg.Lifecycle.AutoCancelInterval,
		Run: func(ctx context.Context) error {
			_, err := lifecycleService.AutoCancelUnpaid(ctx)
			return err
		},
	})
	sched.Register(scheduler.Job{
		Name:     "sla-check",
		Interval: cfg.Lifecycle.SLACheckInterval,
		Run: func(ctx context.Context) error {
			_, err := lifecycleService.TrackSLABreaches(ctx)
			return err
		},
	})
	sched.Register(scheduler.Job{
		Name:     "idempotency-cleanup",
		Interval: cfg.Idempotency.CleanupInterval,
		Run: func(ctx context.Context) error {
			_, err := idempotencyService.CleanupExpired(ctx)
			return err
		},
	})
	sched.Register(scheduler.Job{
		Name:     "outbox-retention",
		Interval: cfg.Outbox.CleanupInterval,
		Run: func(ctx context.Context) error {
			_, err := outboxService.CleanupCompleted(ctx)
			return err
		},
	})
	sched.Register(scheduler.Job{
		Name:     "token-cleanup",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			_, err := authService.CleanupExpired(ctx)
			return err
		},
	})

	schedCtx, stopSched := context.WithCancel(context.Background())
	sched.Start(schedCtx)

	router := handler.NewRouter(cfg, handler.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Order:   handler.NewOrderHandler(orderService, lifecycleService, metrics),
		Webhook: handler.NewWebhookHandler(paymentService, metrics),
	}, authService, idempotencyService, metrics)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("starting http server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopSched()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	sched.Wait()
	log.Info("server exited")
}
