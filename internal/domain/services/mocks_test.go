package services

import (
	"context"
	"sync"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	apperrors "github.com/athebyme/listing-sync-platform/pkg/errors"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
)

// nopLogger — заглушка логгера для тестов
type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func (nopLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (nopLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (n nopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort { return n }
func (n nopLogger) WithField(key string, value interface{}) interfaces.LoggerPort  { return n }
func (nopLogger) Sync() error                                                      { return nil }

// fakeCatalog — управляемая из теста реализация порта каталога.
// Методы делегируют в функции-поля; незаданная функция означает успешный
// вызов с нулевым результатом. Счетчики вызовов защищены мьютексом,
// поскольку движок обращается к каталогу из нескольких горутин
type fakeCatalog struct {
	mu sync.Mutex

	listFn      func(shopID int64, stateFilter string, limit, offset int) (int, []models.Listing, error)
	getFn       func(listingID int64) (*models.Listing, error)
	createFn    func(shopID int64, listing *models.Listing) (*models.Listing, error)
	updateFn    func(shopID int64, listing *models.Listing) error
	inventoryFn func(listingID int64, products []models.VariantProduct) error
	deleteFn    func(listingID int64) error
	taxonomyFn  func(name string) (int64, error)

	listCalls      int
	getCalls       []int64
	createCalls    int
	updateCalls    []int64
	inventoryCalls []int64
	deleteCalls    []int64
	taxonomyCalls  int
}

func (f *fakeCatalog) ListListings(ctx context.Context, shopID int64, stateFilter string, limit, offset int) (int, []models.Listing, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listFn == nil {
		return 0, nil, nil
	}
	return f.listFn(shopID, stateFilter, limit, offset)
}

func (f *fakeCatalog) GetListing(ctx context.Context, listingID int64) (*models.Listing, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, listingID)
	f.mu.Unlock()
	if f.getFn == nil {
		return &models.Listing{ListingID: listingID}, nil
	}
	return f.getFn(listingID)
}

func (f *fakeCatalog) CreateListing(ctx context.Context, shopID int64, listing *models.Listing) (*models.Listing, error) {
	f.mu.Lock()
	f.createCalls++
	f.mu.Unlock()
	if f.createFn == nil {
		created := *listing
		created.ListingID = int64(1000 + f.createCalls)
		return &created, nil
	}
	return f.createFn(shopID, listing)
}

func (f *fakeCatalog) UpdateListing(ctx context.Context, shopID int64, listing *models.Listing) error {
	f.mu.Lock()
	f.updateCalls = append(f.updateCalls, listing.ListingID)
	f.mu.Unlock()
	if f.updateFn == nil {
		return nil
	}
	return f.updateFn(shopID, listing)
}

func (f *fakeCatalog) UpdateInventory(ctx context.Context, listingID int64, products []models.VariantProduct) error {
	f.mu.Lock()
	f.inventoryCalls = append(f.inventoryCalls, listingID)
	f.mu.Unlock()
	if f.inventoryFn == nil {
		return nil
	}
	return f.inventoryFn(listingID, products)
}

func (f *fakeCatalog) DeleteListing(ctx context.Context, listingID int64) error {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, listingID)
	f.mu.Unlock()
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(listingID)
}

func (f *fakeCatalog) ResolveTaxonomyID(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	f.taxonomyCalls++
	f.mu.Unlock()
	if f.taxonomyFn == nil {
		return 1, nil
	}
	return f.taxonomyFn(name)
}

func (f *fakeCatalog) updated() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.updateCalls...)
}

func (f *fakeCatalog) fetched() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.getCalls...)
}

// memCheckpoints — контрольные точки в памяти для тестов
type memCheckpoints struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{data: make(map[string][]byte)}
}

func (m *memCheckpoints) Load(ctx context.Context, sourceHash string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[sourceHash]
	if !ok {
		return nil, apperrors.ErrCheckpointMiss
	}
	return value, nil
}

func (m *memCheckpoints) Save(ctx context.Context, sourceHash string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sourceHash] = value
	m.saves++
	return nil
}

func (m *memCheckpoints) Clear(ctx context.Context, sourceHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sourceHash)
	return nil
}

func (m *memCheckpoints) Close() error { return nil }

func (m *memCheckpoints) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// newTestService создает сервис с выключенными паузами, чтобы тесты не спали
func newTestService(catalogPort *fakeCatalog, checkpoints *memCheckpoints) *SyncService {
	return NewSyncService(catalogPort, checkpoints, nil, nil, nopLogger{}, 77, Options{
		PageSize:        100,
		FetchWorkers:    5,
		FetchBatchPause: 0,
		PageRetries:     0,
		PageRetryPause:  0,
		ApplyBatchSize:  5,
		PreImageBatch:   10,
		DefaultTaxonomy: "Other",
	})
}
