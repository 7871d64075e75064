package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/listing-sync-platform/config"
	"github.com/athebyme/listing-sync-platform/internal/adapters/cache"
	"github.com/athebyme/listing-sync-platform/internal/adapters/catalog"
	"github.com/athebyme/listing-sync-platform/internal/adapters/logger"
	"github.com/athebyme/listing-sync-platform/internal/adapters/messaging"
	postgres "github.com/athebyme/listing-sync-platform/internal/adapters/storage"
	"github.com/athebyme/listing-sync-platform/internal/api"
	"github.com/athebyme/listing-sync-platform/internal/domain/services"
	"github.com/athebyme/listing-sync-platform/internal/security"
	"github.com/athebyme/listing-sync-platform/internal/utils"
	"github.com/athebyme/listing-sync-platform/pkg/auth"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	postgresCon, err := utils.GenerateConnectionString(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
		cfg.Postgres.PoolSize,
		cfg.Postgres.Timeout,
	)
	if err != nil {
		fmt.Printf("Ошибка инициализации строки подключения базы: %v\n", err)
		os.Exit(1)
	}

	db, err := postgres.NewPostgresStorage(ctx, postgresCon)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer db.Close()
	log.Info("Хранилище инициализировано")

	checkpointStore, err := cache.NewRedisCheckpointStore(
		ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Sync.CheckpointTTL,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища контрольных точек", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer checkpointStore.Close()
	log.Info("Хранилище контрольных точек инициализировано")

	messagingClient, err := messaging.NewKafkaMessaging(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		cfg.Kafka.DeadLetterTopic,
		log,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:      cfg.Catalog.BaseURL,
		APIKey:       cfg.Catalog.APIKey,
		AccessToken:  cfg.Catalog.AccessToken,
		Timeout:      cfg.Catalog.Timeout,
		MaxRetries:   cfg.Catalog.MaxRetries,
		RetryBackoff: cfg.Catalog.RetryBackoff,
		TaxonomyTTL:  cfg.Catalog.TaxonomyTTL,
	}, log)
	log.Info("Клиент каталога инициализирован")

	syncService := services.NewSyncService(
		catalogClient,
		checkpointStore,
		db,
		messagingClient,
		log,
		cfg.Catalog.ShopID,
		services.Options{
			PageSize:        cfg.Sync.PageSize,
			FetchWorkers:    cfg.Sync.FetchWorkers,
			FetchBatchPause: cfg.Sync.FetchBatchPause,
			PageRetries:     cfg.Sync.PageRetries,
			PageRetryPause:  cfg.Sync.PageRetryPause,
			ApplyBatchSize:  cfg.Sync.ApplyBatchSize,
			PreImageBatch:   cfg.Sync.PreImageBatch,
			DefaultTaxonomy: cfg.Sync.DefaultTaxonomy,
		},
	)
	log.Info("Сервис синхронизации инициализирован")

	var keycloakClient *auth.KeycloakClient
	if cfg.Keycloak.Enabled {
		keycloakClient, err = auth.NewKeycloakClient(cfg.Keycloak.GetKeycloakConfig())
		if err != nil {
			log.Fatal("Ошибка инициализации Keycloak", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("Клиент Keycloak инициализирован")
	}

	var jwtManager *security.JWTManager
	if cfg.Security.JWTSecret != "" {
		jwtManager, err = security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpirationMin, cfg.AppName)
		if err != nil {
			log.Fatal("Ошибка инициализации JWT", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("Сервис JWT инициализирован")
	}

	router := api.SetupRouter(syncService, db, log, cfg.Security.CORSAllowOrigins, keycloakClient, jwtManager, cfg.Catalog.ShopID)
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatal("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}

		log.Info("HTTP сервер остановлен")

		log.Info("Закрытие соединений с зависимостями...")

		if err := messagingClient.Close(); err != nil {
			log.Error("Ошибка при закрытии Kafka",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := checkpointStore.Close(); err != nil {
			log.Error("Ошибка при закрытии Redis",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := db.Close(); err != nil {
			log.Error("Ошибка при закрытии БД",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		close(done)
	}()

	// Ожидаем завершения работы
	<-done
	log.Info("Сервер корректно завершил работу")
}
