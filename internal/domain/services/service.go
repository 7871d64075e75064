package services

import (
	"context"
	"time"

	"github.com/athebyme/listing-sync-platform/internal/adapters/catalog"
	storage "github.com/athebyme/listing-sync-platform/internal/adapters/storage"
	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
)

// SyncServiceInterface определяет контракт движка синхронизации листингов
type SyncServiceInterface interface {
	// FetchAll выгружает полный набор листингов магазина постранично
	FetchAll(ctx context.Context, stateFilter string, onProgress ProgressFunc) (int, []models.Listing, error)

	// ComputePreview вычисляет изменения между желаемым и текущим состоянием
	ComputePreview(ctx context.Context, desired []models.DesiredListing) (*models.Preview, error)

	// Snapshot делает резервную копию листингов, затрагиваемых одобренными изменениями
	Snapshot(ctx context.Context, preview *models.Preview, approved models.ApprovalSet, sourceHash string) (*models.ListingBackup, error)

	// Apply применяет одобренные изменения пакетами с контрольными точками
	Apply(ctx context.Context, sourceHash string, changes []models.Change, approved models.ApprovalSet, onProgress ProgressFunc) error
}

// ProgressFunc вызывается после каждого пакета с накопленными счетчиками:
// сколько элементов уже обработано, сколько всего и сколько завершилось ошибкой
type ProgressFunc func(current, total, failed int)

// Options содержит настройки движка синхронизации
type Options struct {
	PageSize        int           // размер страницы при выгрузке листингов
	FetchWorkers    int           // количество параллельных запросов страниц
	FetchBatchPause time.Duration // пауза между пакетами страниц
	PageRetries     int           // дополнительные попытки на страницу
	PageRetryPause  time.Duration // задержка перед повтором страницы
	ApplyBatchSize  int           // размер пакета применяемых изменений
	PreImageBatch   int           // размер подпакета при выборке прообразов
	DefaultTaxonomy string        // имя узла таксономии для новых листингов без категории
}

// DefaultOptions возвращает настройки движка по умолчанию
func DefaultOptions() Options {
	return Options{
		PageSize:        100,
		FetchWorkers:    5,
		FetchBatchPause: 200 * time.Millisecond,
		PageRetries:     2,
		PageRetryPause:  time.Second,
		ApplyBatchSize:  5,
		PreImageBatch:   10,
		DefaultTaxonomy: "Other",
	}
}

// SyncService предоставляет бизнес-логику синхронизации листингов:
// постраничную выгрузку, расчет изменений, резервное копирование и
// возобновляемое применение изменений
type SyncService struct {
	catalog     catalog.Port
	checkpoints interfaces.CheckpointPort
	storage     storage.SyncStoragePort
	messaging   interfaces.MessagingPort
	logger      interfaces.LoggerPort
	shopID      int64
	opts        Options
}

// NewSyncService создает новый экземпляр SyncService.
// storage и messaging опциональны: при nil журнал прогонов и события не ведутся
func NewSyncService(
	catalogPort catalog.Port,
	checkpoints interfaces.CheckpointPort,
	syncStorage storage.SyncStoragePort,
	messaging interfaces.MessagingPort,
	logger interfaces.LoggerPort,
	shopID int64,
	opts Options,
) *SyncService {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultOptions().PageSize
	}
	if opts.FetchWorkers < 1 {
		opts.FetchWorkers = 1
	}
	if opts.ApplyBatchSize < 1 {
		opts.ApplyBatchSize = 1
	}
	if opts.PreImageBatch < 1 {
		opts.PreImageBatch = 1
	}

	return &SyncService{
		catalog:     catalogPort,
		checkpoints: checkpoints,
		storage:     syncStorage,
		messaging:   messaging,
		logger:      logger,
		shopID:      shopID,
		opts:        opts,
	}
}
