package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	apperrors "github.com/athebyme/listing-sync-platform/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressPoint struct {
	current int
	total   int
	failed  int
}

func updateChange(id int64) models.Change {
	d := &models.DesiredListing{}
	d.ListingID = id
	d.Title = "Листинг"
	return models.Change{
		ChangeID:  fmt.Sprintf("change-%d", id),
		Type:      models.ChangeUpdate,
		ListingID: id,
		Desired:   d,
	}
}

func updateChanges(n int) ([]models.Change, models.ApprovalSet) {
	changes := make([]models.Change, 0, n)
	approved := make(models.ApprovalSet, n)
	for i := 1; i <= n; i++ {
		change := updateChange(int64(i))
		changes = append(changes, change)
		approved[change.ChangeID] = struct{}{}
	}
	return changes, approved
}

func TestApply_BatchesAndCheckpoints(t *testing.T) {
	catalogPort := &fakeCatalog{}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	changes, approved := updateChanges(12)

	var progress []progressPoint
	err := service.Apply(context.Background(), "hash-a", changes, approved, func(current, total, failed int) {
		progress = append(progress, progressPoint{current, total, failed})
	})

	require.NoError(t, err)
	assert.Len(t, catalogPort.updated(), 12)

	// 12 изменений пакетами по 5: три пакета, точка после каждого
	assert.Equal(t, 3, checkpoints.saveCount())
	require.Len(t, progress, 3)
	assert.Equal(t, progressPoint{5, 12, 0}, progress[0])
	assert.Equal(t, progressPoint{10, 12, 0}, progress[1])
	assert.Equal(t, progressPoint{12, 12, 0}, progress[2])

	// Завершенный прогон удаляет контрольную точку
	_, err = checkpoints.Load(context.Background(), "hash-a")
	assert.ErrorIs(t, err, apperrors.ErrCheckpointMiss)
}

func TestApply_ResumeSkipsProcessed(t *testing.T) {
	catalogPort := &fakeCatalog{}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	changes, approved := updateChanges(12)

	cp := models.Checkpoint{
		SourceHash:   "hash-a",
		Total:        12,
		ProcessedIDs: []int64{1, 2, 3, 4, 5},
	}
	data, err := json.Marshal(cp)
	require.NoError(t, err)
	require.NoError(t, checkpoints.Save(context.Background(), "hash-a", data))

	var progress []progressPoint
	err = service.Apply(context.Background(), "hash-a", changes, approved, func(current, total, failed int) {
		progress = append(progress, progressPoint{current, total, failed})
	})

	require.NoError(t, err)
	// Пять обработанных листингов пропущены, применены оставшиеся семь
	assert.Len(t, catalogPort.updated(), 7)
	require.Len(t, progress, 2)
	assert.Equal(t, progressPoint{10, 12, 0}, progress[0])
	assert.Equal(t, progressPoint{12, 12, 0}, progress[1])
}

func TestApply_HashMismatchRestartsRun(t *testing.T) {
	catalogPort := &fakeCatalog{}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	changes, approved := updateChanges(6)

	stale := models.Checkpoint{
		SourceHash:   "hash-old",
		Total:        6,
		ProcessedIDs: []int64{1, 2, 3},
	}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, checkpoints.Save(context.Background(), "hash-new", data))

	err = service.Apply(context.Background(), "hash-new", changes, approved, nil)

	require.NoError(t, err)
	// Точка от другого содержимого не учитывается
	assert.Len(t, catalogPort.updated(), 6)
}

func TestApply_CorruptCheckpointTreatedAsAbsent(t *testing.T) {
	catalogPort := &fakeCatalog{}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	require.NoError(t, checkpoints.Save(context.Background(), "hash-a", []byte("{broken")))

	changes, approved := updateChanges(3)
	err := service.Apply(context.Background(), "hash-a", changes, approved, nil)

	require.NoError(t, err)
	assert.Len(t, catalogPort.updated(), 3)
}

func TestApply_ItemFailureDoesNotStopRun(t *testing.T) {
	catalogPort := &fakeCatalog{
		updateFn: func(shopID int64, listing *models.Listing) error {
			if listing.ListingID == 2 {
				return errors.New("boom")
			}
			return nil
		},
	}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	changes, approved := updateChanges(6)

	var last progressPoint
	err := service.Apply(context.Background(), "hash-a", changes, approved, func(current, total, failed int) {
		last = progressPoint{current, total, failed}
	})

	require.NoError(t, err)
	assert.Equal(t, progressPoint{6, 6, 1}, last)
	assert.Len(t, catalogPort.updated(), 6)
}

func TestApply_DeleteWithoutIDIsNoOp(t *testing.T) {
	catalogPort := &fakeCatalog{}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	d := &models.DesiredListing{ToDelete: true}
	changes := []models.Change{{ChangeID: "c1", Type: models.ChangeDelete, ListingID: 0, Desired: d}}
	approved := models.NewApprovalSet("c1")

	var last progressPoint
	err := service.Apply(context.Background(), "hash-a", changes, approved, func(current, total, failed int) {
		last = progressPoint{current, total, failed}
	})

	// Удалять нечего: запрос не уходит, но прогон продвигается
	require.NoError(t, err)
	assert.Empty(t, catalogPort.deleteCalls)
	assert.Equal(t, progressPoint{1, 1, 0}, last)
}

func TestApply_CreateAssignsTaxonomyAndInventory(t *testing.T) {
	catalogPort := &fakeCatalog{
		taxonomyFn: func(name string) (int64, error) { return 555, nil },
		createFn: func(shopID int64, listing *models.Listing) (*models.Listing, error) {
			created := *listing
			created.ListingID = 9001
			return &created, nil
		},
	}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	d := &models.DesiredListing{}
	d.Title = "Новый листинг"
	d.Products = []models.VariantProduct{{SKU: "SKU-1", Offerings: []models.Offering{{Price: 5, Quantity: 1, IsEnabled: true}}}}
	changes := []models.Change{{ChangeID: "c1", Type: models.ChangeCreate, Desired: d}}
	approved := models.NewApprovalSet("c1")

	err := service.Apply(context.Background(), "hash-a", changes, approved, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, catalogPort.createCalls)
	assert.Equal(t, 1, catalogPort.taxonomyCalls)
	assert.Equal(t, []int64{9001}, catalogPort.inventoryCalls)
}

func TestApply_CreateInventoryFailureStillSuccess(t *testing.T) {
	catalogPort := &fakeCatalog{
		inventoryFn: func(listingID int64, products []models.VariantProduct) error {
			return errors.New("inventory down")
		},
	}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	d := &models.DesiredListing{}
	d.Title = "Новый листинг"
	d.Products = []models.VariantProduct{{SKU: "SKU-1", Offerings: []models.Offering{{Price: 5, Quantity: 1, IsEnabled: true}}}}
	changes := []models.Change{{ChangeID: "c1", Type: models.ChangeCreate, Desired: d}}
	approved := models.NewApprovalSet("c1")

	var last progressPoint
	err := service.Apply(context.Background(), "hash-a", changes, approved, func(current, total, failed int) {
		last = progressPoint{current, total, failed}
	})

	// Листинг уже создан: ошибка инвентаря не считается провалом изменения
	require.NoError(t, err)
	assert.Equal(t, progressPoint{1, 1, 0}, last)
}

func TestApply_CreateFailureCountsWithoutID(t *testing.T) {
	catalogPort := &fakeCatalog{
		createFn: func(shopID int64, listing *models.Listing) (*models.Listing, error) {
			return nil, errors.New("boom")
		},
	}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	d := &models.DesiredListing{}
	d.Title = "Новый листинг"
	changes := []models.Change{{ChangeID: "c1", Type: models.ChangeCreate, Desired: d}}
	approved := models.NewApprovalSet("c1")

	var last progressPoint
	err := service.Apply(context.Background(), "hash-a", changes, approved, func(current, total, failed int) {
		last = progressPoint{current, total, failed}
	})

	require.NoError(t, err)
	assert.Equal(t, progressPoint{1, 1, 1}, last)
}

func TestApply_UpdateFillsFieldsFromPreImage(t *testing.T) {
	catalogPort := &fakeCatalog{
		getFn: func(listingID int64) (*models.Listing, error) {
			return &models.Listing{ListingID: listingID, TaxonomyID: 333, State: "active"}, nil
		},
	}
	checkpoints := newMemCheckpoints()
	service := newTestService(catalogPort, checkpoints)

	var sent *models.Listing
	catalogPort.updateFn = func(shopID int64, listing *models.Listing) error {
		sent = listing
		return nil
	}

	change := updateChange(7)
	approved := models.NewApprovalSet(change.ChangeID)

	err := service.Apply(context.Background(), "hash-a", []models.Change{change}, approved, nil)

	require.NoError(t, err)
	require.NotNil(t, sent)
	// Прообраз дополняет поля, которых нет в CSV
	assert.Equal(t, int64(333), sent.TaxonomyID)
	assert.Equal(t, "active", sent.State)
	assert.Equal(t, []int64{7}, catalogPort.fetched())
}
