package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Asia/Tashkent"`
	Port   int    `envconfig:"PORT" default:"8080"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token   string `envconfig:"TG_BOT_TOKEN"`
		Channel string `envconfig:"TG_CHANNEL"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQPURL string `envconfig:"AMQP_URL"`

	Gemini struct {
		APIKey  string        `envconfig:"GEMINI_API_KEY"`
		BaseURL string        `envconfig:"GEMINI_BASE_URL"`
		Model   string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
		Timeout time.Duration `envconfig:"GEMINI_TIMEOUT" default:"20s"`
	} `envconfig:""`

	Feed struct {
		PollInterval time.Duration `envconfig:"FEED_POLL_INTERVAL" default:"5s"`
		Limit        int           `envconfig:"SNAPSHOT_LIMIT" default:"100"`
	} `envconfig:""`

	Gate struct {
		CountdownSeconds int    `envconfig:"GATE_COUNTDOWN_SECONDS" default:"8"`
		SubscribeLink    string `envconfig:"GATE_SUBSCRIBE_LINK"`
	} `envconfig:""`

	Listing struct {
		TTL time.Duration `envconfig:"LISTING_TTL" default:"72h"`
	} `envconfig:""`

	Queues struct {
		Writeback string `envconfig:"WRITEBACK_QUEUE_KEY" default:"writeback_jobs"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
