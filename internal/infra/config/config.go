package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Session struct {
		Secret string `envconfig:"SESSION_SECRET"`
	} `envconfig:""`

	Cache struct {
		UnreadTTL  time.Duration `envconfig:"UNREAD_CACHE_TTL" default:"30s"`
		RewardsTTL time.Duration `envconfig:"REWARDS_CACHE_TTL" default:"5m"`
	} `envconfig:""`

	Retry struct {
		Max          int           `envconfig:"RETRY_MAX" default:"3"`
		InitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"100ms"`
	} `envconfig:""`

	Queues struct {
		Notifications string `envconfig:"NOTIFICATIONS_QUEUE_KEY" default:"notification_events"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения; .env подхватывается, если присутствует.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
