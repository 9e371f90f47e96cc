package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	chi "github.com/go-chi/chi/v5"

	"social-pulse/internal/adapters/repo"
	"social-pulse/internal/api"
	"social-pulse/internal/domain"
	"social-pulse/internal/infra/cache"
	"social-pulse/internal/infra/config"
	"social-pulse/internal/infra/db"
	httpinfra "social-pulse/internal/infra/http"
	applog "social-pulse/internal/infra/log"
	"social-pulse/internal/infra/metrics"
	"social-pulse/internal/infra/queue"
	"social-pulse/internal/migrations"
	reactionsusecase "social-pulse/internal/usecase/reactions"
	rewardsusecase "social-pulse/internal/usecase/rewards"
	unreadusecase "social-pulse/internal/usecase/unread"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	migrateDB, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД для миграций")
	}
	if err := migrations.Run(migrateDB, logger.With().Str("component", "migrations").Logger()); err != nil {
		logger.Fatal().Err(err).Msg("api: миграции не применились")
	}
	_ = migrateDB.Close()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("api: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cacheStore := cache.NewRedis(redisClient)

	var notifications domain.NotificationQueue
	if cfg.RabbitURL != "" {
		rabbitQueue, err := queue.NewRabbitNotificationQueue(cfg.RabbitURL, cfg.Queues.Notifications)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		notifications = rabbitQueue
	} else {
		notifications = queue.NewRedisNotificationQueue(redisClient, cfg.Queues.Notifications)
	}

	repoAdapter := repo.NewPostgres(pool)
	unreadService := unreadusecase.NewService(repoAdapter, cacheStore, notifications, logger, cfg.Cache.UnreadTTL)
	reactionsService := reactionsusecase.NewService(repoAdapter, notifications, logger)
	rewardsService := rewardsusecase.NewService(repoAdapter, cacheStore, logger, cfg.Cache.RewardsTTL)

	handlers := api.NewHandlers(unreadService, reactionsService, rewardsService, repoAdapter, logger, cfg.Retry.Max, cfg.Retry.InitialDelay)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	server.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	server.Router.Group(func(protected chi.Router) {
		protected.Use(httpinfra.SessionAuthMiddleware(cfg.Session.Secret))
		handlers.Register(protected)
	})

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}
