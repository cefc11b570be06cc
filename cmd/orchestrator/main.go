package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"film-generator/internal/approval"
	"film-generator/internal/authutils"
	"film-generator/internal/config"
	"film-generator/internal/credit"
	"film-generator/internal/execution"
	"film-generator/internal/handler"
	"film-generator/internal/logger"
	"film-generator/internal/messaging"
	"film-generator/internal/orchestrator"
	"film-generator/internal/poller"
	"film-generator/internal/repository"
	"film-generator/internal/store"
	"film-generator/migrations"
	"film-generator/pkg/database"
	"film-generator/pkg/migration"
	"film-generator/pkg/retry"
)

func main() {
	// Корневой контекст процесса: фоновые циклы опроса задач живут до
	// остановки сервиса, а не до конца породившего их HTTP-запроса.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// --- 1. Конфигурация и логгер ---
	cfg := config.Load()

	zapLogger, err := logger.New(cfg.Logger)
	if err != nil {
		panic("не удалось инициализировать логгер: " + err.Error())
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	zapLogger.Info("Запуск сервиса оркестрации генерации", zap.String("app_env", cfg.AppEnv))

	// --- 2. База данных и миграции ---
	db, err := database.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, db.Pool)
	if err := migrator.Up(context.Background()); err != nil {
		zapLogger.Fatal("Не удалось применить миграции", zap.Error(err))
	}

	// --- 3. Redis (кэш баланса кредитов) ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// --- 4. RabbitMQ (уведомления) ---
	rabbitConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		zapLogger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer rabbitConn.Close()

	publisher, err := messaging.NewNotificationPublisher(zapLogger, rabbitConn, cfg.RabbitMQ.QueueName)
	if err != nil {
		zapLogger.Fatal("Не удалось создать издателя уведомлений", zap.Error(err))
	}
	defer publisher.Close()

	// --- 5. Внешние клиенты ---
	retrier := retry.New(retry.Config{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay(),
	})

	executionClient, err := execution.NewClient(zapLogger, cfg.Execution, retrier)
	if err != nil {
		zapLogger.Fatal("Не удалось создать клиент службы исполнения", zap.Error(err))
	}

	imageGenerator, err := execution.NewImageGenerator(zapLogger, cfg.ImageGenerator, retrier)
	if err != nil {
		zapLogger.Fatal("Не удалось создать клиент генератора изображений", zap.Error(err))
	}

	ledger, err := credit.NewHTTPLedger(zapLogger, cfg.CreditLedger, retrier, redisClient)
	if err != nil {
		zapLogger.Fatal("Не удалось создать клиент кредитного леджера", zap.Error(err))
	}
	gate := credit.NewGate(ledger, zapLogger)

	// --- 6. Репозитории и доменные сервисы ---
	artifactRepo := repository.NewPgArtifactRepository(db.Pool, zapLogger)
	regenRepo := repository.NewPgRegenerationRequestRepository(db.Pool, zapLogger)
	deletionRepo := repository.NewPgDeletionRequestRepository(db.Pool, zapLogger)

	states := store.NewRegistry(zapLogger)

	runtimeRegistry := orchestrator.NewRegistry(orchestrator.RegistryDeps{
		BaseCtx:   rootCtx,
		Logger:    zapLogger,
		Client:    executionClient,
		Gate:      gate,
		Artifacts: artifactRepo,
		Notifier:  publisher,
		States:    states,
		Config: orchestrator.Config{
			Poller: poller.Config{
				Interval:       cfg.Poller.Interval(),
				StuckThreshold: cfg.Poller.StuckThreshold(),
			},
		},
	})

	approvalService := approval.NewService(
		zapLogger,
		regenRepo,
		deletionRepo,
		artifactRepo,
		imageGenerator,
		states,
		publisher,
	)

	jwtVerifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, zapLogger)
	if err != nil {
		zapLogger.Fatal("Не удалось создать верификатор JWT", zap.Error(err))
	}

	apiHandler := handler.NewHandler(
		zapLogger,
		jwtVerifier,
		runtimeRegistry,
		approvalService,
		executionClient,
		artifactRepo,
	)

	// --- 7. HTTP-сервер ---
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(handler.GinZapLogger(zapLogger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	apiHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// WriteTimeout обязан перекрывать самый долгий синхронный вызов наружу:
	// предпросмотр картинки ждет генератор до cfg.ImageGenerator.Timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTPWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLogger.Info("HTTP-сервер запущен", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Ошибка HTTP-сервера", zap.Error(err))
		}
	}()

	// --- 8. Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Получен сигнал завершения, останавливаем сервер...")

	// Сначала гасим фоновые циклы опроса, затем дожидаемся HTTP-сервера.
	rootCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Ошибка при остановке HTTP-сервера", zap.Error(err))
	}

	zapLogger.Info("Сервис остановлен")
}
