package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/evobug-com/story-server/internal/aigen"
	"github.com/evobug-com/story-server/internal/clients"
	"github.com/evobug-com/story-server/internal/config"
	"github.com/evobug-com/story-server/internal/content"
	"github.com/evobug-com/story-server/internal/engine"
	"github.com/evobug-com/story-server/internal/handler"
	"github.com/evobug-com/story-server/internal/logger"
	appMiddleware "github.com/evobug-com/story-server/internal/middleware"
	"github.com/evobug-com/story-server/internal/models"
	"github.com/evobug-com/story-server/internal/random"
	"github.com/evobug-com/story-server/internal/repository"
	"github.com/evobug-com/story-server/internal/session"
	"github.com/evobug-com/story-server/internal/story"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Story Server...")

	// Загружаем конфиг ДО инициализации логгера
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err) // Стандартный логгер, т.к. zap еще нет
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer appLogger.Sync()
	appLogger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	// Источник случайности движка: общий для бросков исходов, рулетки
	// выбора историй и вычисляемых значений контента.
	rng := random.New()

	// Каталог авторских историй
	catalog := story.NewCatalog()
	if err := content.RegisterAll(catalog, rng); err != nil {
		appLogger.Fatal("Не удалось зарегистрировать авторские истории", zap.Error(err))
	}
	appLogger.Info("Story catalog loaded", zap.Int("stories", catalog.Len()))

	// Хранилище сессий: Redis для переживания рестартов, память для
	// локальной разработки.
	var sessions session.Store
	var memStore *session.MemoryStore
	switch cfg.SessionBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			appLogger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
		}
		cancel()
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL, appLogger)
		appLogger.Info("Успешное подключение к Redis", zap.String("addr", cfg.RedisAddr))
	default:
		memStore = session.NewMemoryStore(cfg.SessionTTL, appLogger)
		sessions = memStore
	}

	eng := engine.New(catalog, sessions, rng, appLogger, engine.Config{
		ResumeWindow:    cfg.ResumeWindow,
		MaxAdvanceSteps: cfg.MaxAdvanceSteps,
	})

	economyClient := clients.NewHTTPEconomyClient(cfg.EconomyServiceURL, cfg.InterServiceToken, appLogger)

	// Архив сгенерированных историй (опционально)
	var archive repository.StoryArchive
	if cfg.ArchiveEnabled {
		dbPool, err := setupDatabase(cfg)
		if err != nil {
			appLogger.Fatal("Не удалось подключиться к БД", zap.Error(err))
		}
		defer dbPool.Close()
		appLogger.Info("Успешное подключение к PostgreSQL")

		if err := repository.RunMigrations(dbPool, appLogger); err != nil {
			appLogger.Fatal("Не удалось применить миграции", zap.Error(err))
		}
		archive = repository.NewPgStoryArchive(dbPool, appLogger)
	}

	// AI-генератор (опционально)
	var aiService *aigen.Service
	if cfg.AIEnabled {
		aiClient := aigen.NewOpenAIClient(aigen.ClientConfig{
			BaseURL:           cfg.AIBaseURL,
			APIKey:            cfg.AIAPIKey,
			Model:             cfg.AIModel,
			MaxTokens:         cfg.AIMaxTokens,
			Temperature:       cfg.AITemperature,
			PromptTokenBudget: cfg.AITokenBudget,
		}, appLogger)

		aiCfg := aigen.DefaultConfig()
		aiCfg.MaxDepth = cfg.AIMaxDepth
		aiService = aigen.NewService(catalog, eng, aiClient, archive, appLogger, aiCfg)
		appLogger.Info("AI generation enabled", zap.String("model", cfg.AIModel), zap.Int("maxDepth", cfg.AIMaxDepth))
	}

	// Уборщик стартует после генератора: истекшая сессия AI-истории
	// должна освобождать и ее место в каталоге.
	if memStore != nil {
		if aiService != nil {
			memStore.SetOnEvict(func(s *models.Session) { aiService.DiscardStory(s.StoryID) })
		}
		memStore.StartJanitor(time.Minute)
		defer memStore.Stop()
	}

	storyHandler := handler.NewStoryHandler(eng, catalog, sessions, economyClient, aiService, rng, appLogger, cfg.InterServiceToken)

	// Настройка Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(appMiddleware.EchoZapLogger(appLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())

	storyHandler.RegisterRoutes(e)

	log.Printf("Story сервер слушает на порту %s", cfg.Port)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("Ошибка запуска HTTP сервера: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal("Ошибка при graceful shutdown Echo: ", err)
	}

	log.Println("Story Server успешно остановлен")
}

// setupDatabase инициализирует и возвращает пул соединений с БД
func setupDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := cfg.GetDSN()
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}
	if err = dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД (ping failed): %w", err)
	}
	return dbPool, nil
}
