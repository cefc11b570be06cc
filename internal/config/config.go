// Package config загружает конфигурацию приложения из переменных окружения
// и .env файла.
package config

import (
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"film-generator/internal/credit"
	"film-generator/internal/execution"
	"film-generator/internal/logger"
	"film-generator/internal/messaging"
	"film-generator/pkg/database"
)

// Config структура для хранения всей конфигурации приложения.
type Config struct {
	AppEnv    string `env:"APP_ENV" env-default:"development"`
	Port      string `env:"PORT" env-default:"8080"`
	JWTSecret string `env:"JWT_SECRET" env-required:"true"`

	// CORSAllowedOrigins - список разрешенных origin через запятую.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`

	Logger         logger.Config
	Database       database.Config
	RedisAddr      string `env:"REDIS_ADDR" env-required:"true"`
	RedisPassword  string `env:"REDIS_PASSWORD" env-default:""`
	RabbitMQ       messaging.Config
	Execution      execution.Config
	ImageGenerator execution.ImageGeneratorConfig
	CreditLedger   credit.LedgerConfig

	Retry  RetryConfig
	Poller PollerConfig
}

// RetryConfig - настройки retry-экзекьютора сетевых вызовов.
type RetryConfig struct {
	MaxRetries      int `env:"RETRY_MAX_RETRIES" env-default:"3"`
	InitialDelaySec int `env:"RETRY_INITIAL_DELAY_SEC" env-default:"2"`
}

// PollerConfig - настройки поллера статусов задач.
type PollerConfig struct {
	IntervalMS        int `env:"POLL_INTERVAL_MS" env-default:"2500"`
	StuckThresholdSec int `env:"POLL_STUCK_THRESHOLD_SEC" env-default:"30"`
}

// Interval возвращает интервал опроса.
func (c PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// StuckThreshold возвращает порог предупреждения о зависшей задаче.
func (c PollerConfig) StuckThreshold() time.Duration {
	return time.Duration(c.StuckThresholdSec) * time.Second
}

// InitialDelay возвращает начальную задержку повтора.
func (c RetryConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelaySec) * time.Second
}

// HTTPWriteTimeout возвращает WriteTimeout HTTP-сервера. Синхронный
// предпросмотр держит соединение открытым на весь вызов генератора
// изображений, поэтому таймаут записи считается от его таймаута с запасом.
func (c *Config) HTTPWriteTimeout() time.Duration {
	t := time.Duration(c.ImageGenerator.Timeout)*time.Second + 15*time.Second
	if t < 15*time.Second {
		t = 15 * time.Second
	}
	return t
}

// Load загружает конфигурацию из переменных окружения и .env файла.
func Load() *Config {
	// Загружаем .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	return &cfg
}
