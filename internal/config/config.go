package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию для Story Server
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"STORY_SERVER_PORT" default:"8084"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Настройки движка историй
	SessionBackend  string        `envconfig:"SESSION_BACKEND" default:"memory"` // memory | redis
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	ResumeWindow    time.Duration `envconfig:"RESUME_WINDOW" default:"15m"`
	MaxAdvanceSteps int           `envconfig:"MAX_ADVANCE_STEPS" default:"64"`

	// Настройки Redis (используются при SESSION_BACKEND=redis)
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Секретное поле БЕЗ envconfig тега
	RedisPassword string

	// Настройки PostgreSQL (архив сгенерированных историй)
	ArchiveEnabled bool          `envconfig:"ARCHIVE_ENABLED" default:"false"`
	DBHost         string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort         string        `envconfig:"DB_PORT" default:"5432"`
	DBUser         string        `envconfig:"DB_USER" default:"story"`
	DBName         string        `envconfig:"DB_NAME" default:"story"`
	DBSSLMode      string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns     int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout  time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Настройки AI-генерации
	AIEnabled     bool    `envconfig:"AI_ENABLED" default:"false"`
	AIBaseURL     string  `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel       string  `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AIMaxDepth    int     `envconfig:"AI_MAX_DEPTH" default:"3"`
	AIMaxTokens   int     `envconfig:"AI_MAX_TOKENS" default:"2048"`
	AITemperature float32 `envconfig:"AI_TEMPERATURE" default:"0.8"`
	AITokenBudget int     `envconfig:"AI_PROMPT_TOKEN_BUDGET" default:"6000"`
	// Секретное поле БЕЗ envconfig тега
	AIAPIKey string

	// Настройки Economy Service (начисление наград)
	EconomyServiceURL string `envconfig:"ECONOMY_SERVICE_URL" required:"true"`
	// Секретное поле БЕЗ envconfig тега
	InterServiceToken string
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	// Пароль теперь в c.DBPassword
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации story-server: %w", err)
	}

	if cfg.SessionBackend != "memory" && cfg.SessionBackend != "redis" {
		return nil, fmt.Errorf("недопустимый SESSION_BACKEND: %q (ожидается memory или redis)", cfg.SessionBackend)
	}

	// Загружаем ОБЯЗАТЕЛЬНЫЕ секреты
	var loadErr error
	cfg.InterServiceToken, loadErr = ReadSecret("internal_service_token")
	if loadErr != nil {
		return nil, loadErr
	}

	// Секреты опциональных подсистем читаем только когда подсистема включена
	if cfg.SessionBackend == "redis" {
		cfg.RedisPassword, loadErr = ReadSecret("redis_password")
		if loadErr != nil {
			return nil, loadErr
		}
	}
	if cfg.ArchiveEnabled {
		cfg.DBPassword, loadErr = ReadSecret("db_password")
		if loadErr != nil {
			return nil, loadErr
		}
	}
	if cfg.AIEnabled {
		cfg.AIAPIKey, loadErr = ReadSecret("ai_api_key")
		if loadErr != nil {
			return nil, loadErr
		}
	}

	log.Printf("Конфигурация Story Server загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  Session Backend: %s (TTL: %v, Resume Window: %v)", cfg.SessionBackend, cfg.SessionTTL, cfg.ResumeWindow)
	if cfg.SessionBackend == "redis" {
		log.Printf("  Redis Addr: %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.ArchiveEnabled {
		log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
		log.Printf("  DB Max Conns: %d", cfg.DBMaxConns)
	}
	log.Printf("  AI Enabled: %v", cfg.AIEnabled)
	if cfg.AIEnabled {
		log.Printf("  AI Model: %s (max depth: %d)", cfg.AIModel, cfg.AIMaxDepth)
	}
	log.Printf("  Economy Service URL: %s", cfg.EconomyServiceURL)
	log.Println("  Inter-Service Token: [ЗАГРУЖЕН]")

	return &cfg, nil
}
