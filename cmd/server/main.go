// Package main runs the events HTTP server with the live capacity feed, the
// expiry sweep scheduler and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/connect-hub/backend/config"
	"github.com/connect-hub/backend/internal/auth"
	"github.com/connect-hub/backend/internal/emaillogs"
	"github.com/connect-hub/backend/internal/events"
	"github.com/connect-hub/backend/internal/memstore"
	"github.com/connect-hub/backend/internal/middleware"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/internal/notify"
	"github.com/connect-hub/backend/internal/organizations"
	"github.com/connect-hub/backend/internal/realtime"
	"github.com/connect-hub/backend/internal/signups"
	"github.com/connect-hub/backend/internal/sweep"
	"github.com/connect-hub/backend/pkg/database"
	"github.com/connect-hub/backend/pkg/queue"
	"github.com/connect-hub/backend/pkg/redis"
	"github.com/connect-hub/backend/pkg/response"
	"github.com/connect-hub/backend/pkg/storage"
)

// stores groups the persistence backends selected by STORE_DRIVER.
type stores struct {
	signups   signups.Store
	events    events.Store
	orgs      events.OrgAccess
	emailLogs emaillogs.Store
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	var st stores
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		mem := memstore.New()
		st = stores{signups: mem, events: mem, orgs: mem, emailLogs: mem}
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		st = stores{
			signups:   signups.NewRepository(pool),
			events:    events.NewRepository(pool),
			orgs:      organizations.NewRepository(pool),
			emailLogs: emaillogs.NewRepository(pool),
		}
	}

	// Redis is optional: without it notifications are off, the hub is
	// process-local and every instance runs its own sweep.
	var (
		rdb      *redis.Client
		redisPub realtime.RedisPublisher
		redisSub realtime.RedisSubscriber
		leaser   sweep.Leaser
		notifier signups.Notifier
	)
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		redisPub, redisSub = pubsub, pubsub
		if cfg.Sweep.Lease {
			leaser = rdb
		}
		notifier = notify.NewQueueNotifier(queue.NewQueue(rdb.Client, logger), cfg.Events.Timezone, logger)
	} else {
		logger.Warn("REDIS_ADDR not set; notifications and cross-instance feed disabled")
	}

	var archiver sweep.Archiver
	if cfg.AWS.SweepBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SweepBucket:     cfg.AWS.SweepBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			archiver = s3Client
		}
	}

	hub := realtime.NewHub(logger, redisPub, redisSub)
	jwtService := auth.NewJWTService(cfg.JWT.Secret)
	resolver := events.NewResolver(cfg.Events.Timezone, cfg.Events.DefaultDuration)

	// Services
	signupOpts := []signups.Option{signups.WithCapacityPublisher(hub)}
	if notifier != nil {
		signupOpts = append(signupOpts, signups.WithNotifier(notifier))
	}
	signupSvc := signups.NewService(st.signups, logger, signupOpts...)
	eventSvc := events.NewService(st.events, st.orgs, resolver, logger,
		events.WithGracePeriod(cfg.Sweep.GracePeriod),
		events.WithCapacityPublisher(hub),
	)

	// Expiry sweep
	sweeper := sweep.NewSweeper(st.events, signupSvc, resolver, logger, sweep.WithGracePeriod(cfg.Sweep.GracePeriod))
	scheduler := sweep.NewScheduler(sweeper, leaser, archiver, sweep.SchedulerConfig{
		Interval:     cfg.Sweep.Interval,
		StartupDelay: cfg.Sweep.StartupDelay,
		HistorySize:  cfg.Sweep.History,
		Holder:       instanceID(),
	}, logger)

	// Handlers
	eventHandler := events.NewHandler(eventSvc)
	signupHandler := signups.NewHandler(signupSvc, eventSvc)
	sweepHandler := sweep.NewHandler(scheduler)
	emailLogsHandler := emaillogs.NewHandler(st.emailLogs, eventSvc)

	jwtValidate := func(token string) (uuid.UUID, models.Role, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.GET("/events/:id/availability", signupHandler.Availability)
		api.GET("/events/:id/emails", emailLogsHandler.ListByEvent)
		api.POST("/series", eventHandler.CreateSeries)

		// Signups
		api.POST("/events/:id/signups", signupHandler.Reserve)
		api.POST("/events/:id/signups/group", signupHandler.ReserveGroup)
		api.GET("/events/:id/signups", signupHandler.ListByEvent)
		api.DELETE("/events/:id/signups/:userId", signupHandler.Cancel)
		api.GET("/me/signups", signupHandler.ListMine)

		// Expiry sweep (admin only)
		admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
		admin.GET("/sweeps", sweepHandler.Status)
		admin.POST("/sweeps", sweepHandler.Run)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, signupSvc.Availability))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	scheduler.Start(sweepCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// Waits for an in-flight sweep pass.
	scheduler.Stop()
	logger.Info("server stopped")
}

// instanceID names this process in the sweep lease.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "server"
	}
	return host + "-" + uuid.NewString()[:8]
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
