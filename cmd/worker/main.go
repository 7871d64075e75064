package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/athebyme/listing-sync-platform/config"
	"github.com/athebyme/listing-sync-platform/internal/adapters/cache"
	"github.com/athebyme/listing-sync-platform/internal/adapters/catalog"
	"github.com/athebyme/listing-sync-platform/internal/adapters/csvio"
	"github.com/athebyme/listing-sync-platform/internal/adapters/logger"
	"github.com/athebyme/listing-sync-platform/internal/adapters/messaging"
	postgres "github.com/athebyme/listing-sync-platform/internal/adapters/storage"
	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/athebyme/listing-sync-platform/internal/domain/services"
	"github.com/athebyme/listing-sync-platform/internal/utils"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	pkgutils "github.com/athebyme/listing-sync-platform/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Метрики для Prometheus
var (
	commandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_sync_commands_total",
		Help: "Общее количество обработанных команд синхронизации",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "worker_sync_run_duration_seconds",
		Help:    "Длительность прогона синхронизации",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	changesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_sync_changes_applied_total",
		Help: "Общее количество примененных изменений",
	}, []string{"result"})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worker_sync_active_runs",
		Help: "Количество выполняющихся прогонов синхронизации",
	})
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
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	// HTTP сервер для метрик, если они включены
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: addr})

			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

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
		log.Fatal("Ошибка генерации строки подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	db, err := postgres.NewPostgresStorage(ctx, postgresCon)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
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
		log.Fatal("Ошибка инициализации хранилища контрольных точек",
			interfaces.LogField{Key: "error", Value: err.Error()})
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
		log.Fatal("Ошибка инициализации системы обмена сообщениями",
			interfaces.LogField{Key: "error", Value: err.Error()})
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

	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	subscribeToSyncCommands(ctx, messagingClient, syncService, cfg.Kafka.CommandsTopic, log, &wg)

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
		wg.Wait()
		close(done)
	}()

	log.Info("Воркер запущен и готов к обработке команд синхронизации")
	<-done
	log.Info("Воркер корректно завершил работу")
}

// Подписка на команды синхронизации
func subscribeToSyncCommands(ctx context.Context, messagingClient interfaces.MessagingPort,
	syncService services.SyncServiceInterface, topic string,
	logger interfaces.LoggerPort, wg *sync.WaitGroup) {

	commandHandler := func(ctx context.Context, msg *interfaces.Message) error {
		logger.InfoWithContext(ctx, "Получена команда синхронизации",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "topic", Value: msg.Topic},
		)

		var command messaging.ApplyChangesCommand
		if err := json.Unmarshal(msg.Value, &command); err != nil {
			logger.ErrorWithContext(ctx, "Ошибка декодирования команды",
				interfaces.LogField{Key: "error", Value: err.Error()})
			commandsProcessed.WithLabelValues("error").Inc()
			return err
		}

		switch command.Type {
		case messaging.CommandApplyChanges:
			if err := runApplyCommand(ctx, syncService, command, logger); err != nil {
				commandsProcessed.WithLabelValues("error").Inc()
				return err
			}
			commandsProcessed.WithLabelValues("success").Inc()
			return nil

		default:
			logger.WarnWithContext(ctx, "Неизвестный тип команды",
				interfaces.LogField{Key: "command_type", Value: command.Type})
			commandsProcessed.WithLabelValues("unknown").Inc()
			return nil
		}
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		unsubscribe, err := messagingClient.Subscribe(ctx, topic, commandHandler)
		if err != nil {
			logger.Error("Ошибка подписки на команды синхронизации",
				interfaces.LogField{Key: "error", Value: err.Error()})
			return
		}
		defer unsubscribe()

		logger.Info("Подписка на команды синхронизации установлена")

		<-ctx.Done()
		logger.Info("Отмена подписки на команды синхронизации")
	}()
}

// runApplyCommand выполняет автономный прогон синхронизации по CSV из команды:
// вычисляет изменения, снимает резервную копию и применяет одобренное множество
func runApplyCommand(ctx context.Context, syncService services.SyncServiceInterface,
	command messaging.ApplyChangesCommand, logger interfaces.LoggerPort) error {

	startTime := time.Now()
	activeRuns.Inc()
	defer activeRuns.Dec()

	if len(command.CSVContent) == 0 {
		logger.WarnWithContext(ctx, "Команда синхронизации без содержимого CSV",
			interfaces.LogField{Key: "command_id", Value: command.ID})
		return nil
	}

	desired, err := csvio.ParseDesired(bytes.NewReader(command.CSVContent))
	if err != nil {
		logger.ErrorWithContext(ctx, "Ошибка разбора CSV из команды",
			interfaces.LogField{Key: "command_id", Value: command.ID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}

	preview, err := syncService.ComputePreview(ctx, desired)
	if err != nil {
		logger.ErrorWithContext(ctx, "Ошибка вычисления изменений",
			interfaces.LogField{Key: "command_id", Value: command.ID},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}

	sourceHash := pkgutils.ContentHash(command.CSVContent)

	// Пустой список идентификаторов означает одобрение всех изменений
	var approved models.ApprovalSet
	if len(command.ChangeIDs) > 0 {
		approved = models.NewApprovalSet(command.ChangeIDs...)
	} else {
		approved = make(models.ApprovalSet, len(preview.Changes))
		for _, ch := range preview.Changes {
			approved[ch.ChangeID] = struct{}{}
		}
	}

	logger.InfoWithContext(ctx, "Начало автономного прогона синхронизации",
		interfaces.LogField{Key: "command_id", Value: command.ID},
		interfaces.LogField{Key: "source_hash", Value: sourceHash},
		interfaces.LogField{Key: "changes", Value: len(preview.Changes)},
		interfaces.LogField{Key: "approved", Value: len(approved)},
	)

	if _, err := syncService.Snapshot(ctx, preview, approved, sourceHash); err != nil {
		logger.ErrorWithContext(ctx, "Ошибка создания резервной копии",
			interfaces.LogField{Key: "source_hash", Value: sourceHash},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}

	var lastCurrent, lastFailed int
	onProgress := func(current, total, failed int) {
		changesApplied.WithLabelValues("success").Add(float64((current - failed) - (lastCurrent - lastFailed)))
		changesApplied.WithLabelValues("failed").Add(float64(failed - lastFailed))
		lastCurrent, lastFailed = current, failed

		logger.InfoWithContext(ctx, "Прогресс применения изменений",
			interfaces.LogField{Key: "current", Value: current},
			interfaces.LogField{Key: "total", Value: total},
			interfaces.LogField{Key: "failed", Value: failed},
		)
	}

	if err := syncService.Apply(ctx, sourceHash, preview.Changes, approved, onProgress); err != nil {
		logger.ErrorWithContext(ctx, "Ошибка применения изменений",
			interfaces.LogField{Key: "source_hash", Value: sourceHash},
			interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}

	duration := time.Since(startTime).Seconds()
	runDuration.Observe(duration)

	logger.InfoWithContext(ctx, "Прогон синхронизации завершен",
		interfaces.LogField{Key: "source_hash", Value: sourceHash},
		interfaces.LogField{Key: "duration", Value: duration},
	)

	return nil
}
