package services

import (
	"context"
	"errors"
	"testing"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desiredUpdate(id int64, mutate func(*models.DesiredListing)) models.DesiredListing {
	d := models.DesiredListing{}
	d.ListingID = id
	d.Title = "Кружка"
	d.Description = "Керамическая кружка"
	d.Price = 10.00
	d.Quantity = 5
	d.State = "active"
	d.Tags = []string{"кухня", "керамика"}
	if mutate != nil {
		mutate(&d)
	}
	return d
}

func currentListing(id int64) *models.Listing {
	return &models.Listing{
		ListingID:   id,
		Title:       "Кружка",
		Description: "Керамическая кружка",
		Price:       10.00,
		Quantity:    5,
		State:       "active",
		Tags:        []string{"керамика", "кухня"},
	}
}

func TestComputePreview_CreateWithoutLookup(t *testing.T) {
	catalogPort := &fakeCatalog{}
	service := newTestService(catalogPort, newMemCheckpoints())

	d := models.DesiredListing{}
	d.Title = "Новый листинг"

	preview, err := service.ComputePreview(context.Background(), []models.DesiredListing{d})

	require.NoError(t, err)
	require.Len(t, preview.Changes, 1)
	assert.Equal(t, models.ChangeCreate, preview.Changes[0].Type)
	assert.NotEmpty(t, preview.Changes[0].ChangeID)
	assert.Equal(t, 1, preview.Summary.Creates)
	// Для создаваемого листинга текущее состояние не запрашивается
	assert.Empty(t, catalogPort.fetched())
}

func TestComputePreview_DeleteWithoutLookup(t *testing.T) {
	catalogPort := &fakeCatalog{}
	service := newTestService(catalogPort, newMemCheckpoints())

	d := desiredUpdate(42, func(d *models.DesiredListing) { d.ToDelete = true })

	preview, err := service.ComputePreview(context.Background(), []models.DesiredListing{d})

	require.NoError(t, err)
	require.Len(t, preview.Changes, 1)
	assert.Equal(t, models.ChangeDelete, preview.Changes[0].Type)
	assert.Equal(t, int64(42), preview.Changes[0].ListingID)
	assert.Equal(t, 1, preview.Summary.Deletes)
	assert.Empty(t, catalogPort.fetched())
}

func TestComputePreview_NoOpSuppressed(t *testing.T) {
	catalogPort := &fakeCatalog{
		getFn: func(listingID int64) (*models.Listing, error) {
			return currentListing(listingID), nil
		},
	}
	service := newTestService(catalogPort, newMemCheckpoints())

	// Отличаются только пробельные края, порядок тегов и цена в пределах допуска
	d := desiredUpdate(42, func(d *models.DesiredListing) {
		d.Title = "  Кружка "
		d.Price = 10.004
		d.Tags = []string{"кухня", "керамика"}
	})

	preview, err := service.ComputePreview(context.Background(), []models.DesiredListing{d})

	require.NoError(t, err)
	assert.Empty(t, preview.Changes)
	assert.Equal(t, 0, preview.Summary.Total())
}

func TestComputePreview_UpdateFieldDiffs(t *testing.T) {
	catalogPort := &fakeCatalog{
		getFn: func(listingID int64) (*models.Listing, error) {
			return currentListing(listingID), nil
		},
	}
	service := newTestService(catalogPort, newMemCheckpoints())

	d := desiredUpdate(42, func(d *models.DesiredListing) {
		d.Title = "Кружка синяя"
		d.Price = 12.50
		d.Quantity = 8
	})

	preview, err := service.ComputePreview(context.Background(), []models.DesiredListing{d})

	require.NoError(t, err)
	require.Len(t, preview.Changes, 1)
	change := preview.Changes[0]
	assert.Equal(t, models.ChangeUpdate, change.Type)
	assert.Equal(t, 1, preview.Summary.Updates)

	fields := make(map[string]models.FieldDiff, len(change.Fields))
	for _, f := range change.Fields {
		fields[f.Field] = f
	}
	require.Len(t, fields, 3)
	assert.Equal(t, "Кружка", fields["title"].Before)
	assert.Equal(t, "Кружка синяя", fields["title"].After)
	assert.Equal(t, "10.00", fields["price"].Before)
	assert.Equal(t, "12.50", fields["price"].After)
	assert.Equal(t, "5", fields["quantity"].Before)
	assert.Equal(t, "8", fields["quantity"].After)
}

func TestComputePreview_BlankStateIgnored(t *testing.T) {
	catalogPort := &fakeCatalog{
		getFn: func(listingID int64) (*models.Listing, error) {
			return currentListing(listingID), nil
		},
	}
	service := newTestService(catalogPort, newMemCheckpoints())

	// Пустое состояние в CSV означает "не менять", а не "очистить"
	d := desiredUpdate(42, func(d *models.DesiredListing) { d.State = "" })

	preview, err := service.ComputePreview(context.Background(), []models.DesiredListing{d})

	require.NoError(t, err)
	assert.Empty(t, preview.Changes)
}

func TestComputePreview_VariantDiffsBySKU(t *testing.T) {
	catalogPort := &fakeCatalog{
		getFn: func(listingID int64) (*models.Listing, error) {
			current := currentListing(listingID)
			current.Products = []models.VariantProduct{
				{SKU: "MUG-S", Offerings: []models.Offering{{Price: 10, Quantity: 3, IsEnabled: true}}},
				{SKU: "MUG-XL", Offerings: []models.Offering{{Price: 14, Quantity: 1, IsEnabled: true}}},
			}
			return current, nil
		},
	}
	service := newTestService(catalogPort, newMemCheckpoints())

	d := desiredUpdate(42, func(d *models.DesiredListing) {
		d.Products = []models.VariantProduct{
			{SKU: "MUG-S", Offerings: []models.Offering{{Price: 11, Quantity: 3, IsEnabled: true}}},
			{SKU: "MUG-M", Offerings: []models.Offering{{Price: 12, Quantity: 2, IsEnabled: true}}},
		}
	})

	preview, err := service.ComputePreview(context.Background(), []models.DesiredListing{d})

	require.NoError(t, err)
	require.Len(t, preview.Changes, 1)

	variants := preview.Changes[0].Variants
	require.Len(t, variants, 3)
	assert.Equal(t, "MUG-S", variants[0].SKU)
	assert.Equal(t, "price", variants[0].Field)
	assert.Equal(t, "MUG-M", variants[1].SKU)
	assert.Equal(t, "added", variants[1].After)
	assert.Equal(t, "MUG-XL", variants[2].SKU)
	assert.Equal(t, "removed", variants[2].After)
}

func TestComputePreview_FetchFailureSkipsListing(t *testing.T) {
	catalogPort := &fakeCatalog{
		getFn: func(listingID int64) (*models.Listing, error) {
			if listingID == 42 {
				return nil, errors.New("timeout")
			}
			return currentListing(listingID), nil
		},
	}
	service := newTestService(catalogPort, newMemCheckpoints())

	broken := desiredUpdate(42, func(d *models.DesiredListing) { d.Title = "Другой заголовок" })
	good := desiredUpdate(43, func(d *models.DesiredListing) { d.Title = "Другой заголовок" })

	preview, err := service.ComputePreview(context.Background(), []models.DesiredListing{broken, good})

	// Недоступный листинг пропускается, остальные обрабатываются
	require.NoError(t, err)
	require.Len(t, preview.Changes, 1)
	assert.Equal(t, int64(43), preview.Changes[0].ListingID)
	assert.Equal(t, 1, preview.Summary.Updates)
}
