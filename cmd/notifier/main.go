package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"social-pulse/internal/adapters/repo"
	"social-pulse/internal/adapters/ws"
	"social-pulse/internal/domain"
	"social-pulse/internal/infra/cache"
	"social-pulse/internal/infra/config"
	"social-pulse/internal/infra/db"
	httpinfra "social-pulse/internal/infra/http"
	applog "social-pulse/internal/infra/log"
	"social-pulse/internal/infra/metrics"
	"social-pulse/internal/infra/queue"
)

// dedupTTL ограничивает окно, в котором повторно доставленное из очереди
// событие считается дубликатом.
const dedupTTL = 24 * time.Hour

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("notifier: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cacheStore := cache.NewRedis(redisClient)

	var notifications domain.NotificationQueue
	if cfg.RabbitURL != "" {
		rabbitQueue, err := queue.NewRabbitNotificationQueue(cfg.RabbitURL, cfg.Queues.Notifications)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbitQueue.Close()
		notifications = rabbitQueue
	} else {
		notifications = queue.NewRedisNotificationQueue(redisClient, cfg.Queues.Notifications)
	}

	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	server.Router.Group(func(protected chi.Router) {
		protected.Use(httpinfra.SessionAuthMiddleware(cfg.Session.Secret))
		protected.Get("/ws", hub.Handler())
	})
	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("notifier: сервер остановлен")
		}
	}()

	worker := &fanoutWorker{
		log:     logger.With().Str("component", "fanout").Logger(),
		queue:   notifications,
		members: repoAdapter,
		dedup:   cacheStore,
		hub:     hub,
	}

	logger.Info().Msg("notifier: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("notifier: остановка")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

type memberLister interface {
	ListMembers(ctx context.Context, channelID string) ([]int64, error)
}

type fanoutWorker struct {
	log     zerolog.Logger
	queue   domain.NotificationQueue
	members memberLister
	dedup   domain.Cache
	hub     *ws.Hub
}

func (w *fanoutWorker) Run(ctx context.Context) {
	for {
		event, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		eventLog := w.log.With().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Int64("actor", event.ActorID).
			Logger()

		if event.ID == "" {
			eventLog.Error().Msg("событие без идентификатора, подтверждаем и пропускаем")
			_ = ack(true)
			continue
		}

		// SetNX-замок по идентификатору события: очередь может доставить
		// событие повторно, клиентам оно уходит не больше одного раза.
		err = w.dedup.Once("notify:delivered:"+event.ID, dedupTTL, func() error {
			return w.deliver(ctx, event)
		})
		if err != nil {
			eventLog.Error().Err(err).Msg("доставка не удалась, возвращаем в очередь")
			_ = ack(false)
			continue
		}
		_ = ack(true)
	}
}

// deliver разветвляет событие по получателям. Прочтения уходят на другие
// подключения самого пользователя, реакции — участникам канала, кроме
// автора события.
func (w *fanoutWorker) deliver(ctx context.Context, event domain.NotificationEvent) error {
	switch event.Type {
	case domain.NotificationMessagesRead:
		w.hub.SendToUser(event.ActorID, event)
		return nil
	case domain.NotificationMessageReacted:
		members, err := w.members.ListMembers(ctx, event.GroupKey)
		if err != nil {
			return fmt.Errorf("получение участников канала: %w", err)
		}
		for _, userID := range members {
			if userID == event.ActorID {
				continue
			}
			w.hub.SendToUser(userID, event)
		}
		return nil
	default:
		w.log.Warn().Str("type", string(event.Type)).Msg("неизвестный тип события, пропускаем")
		return nil
	}
}
