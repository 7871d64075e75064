package csvio

import (
	"strings"
	"testing"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `listing_id,title,description,price,quantity,state,tags,sku,variant_price,variant_quantity,variant_enabled
42,Кружка,Керамическая кружка,10.00,5,active,кухня;керамика,MUG-S,10.00,3,true
42,Кружка,Керамическая кружка,10.00,5,active,кухня;керамика,MUG-L,12.00,2,false
,Новая тарелка,Фарфоровая тарелка,15.50,4,draft,кухня,PLATE-M,15.50,4,true
99,Старый плакат,,0,0,,,DELETE,,,
`

func TestParseDesired_GroupsRowsByListingID(t *testing.T) {
	desired, err := ParseDesired(strings.NewReader(sampleCSV))

	require.NoError(t, err)
	require.Len(t, desired, 3)

	mug := desired[0]
	assert.Equal(t, int64(42), mug.ListingID)
	assert.Equal(t, "Кружка", mug.Title)
	assert.InDelta(t, 10.00, mug.Price, 0.001)
	assert.Equal(t, []string{"кухня", "керамика"}, mug.Tags)
	assert.False(t, mug.ToDelete)

	// Две строки одного листинга собираются в два варианта
	require.Len(t, mug.Products, 2)
	assert.Equal(t, "MUG-S", mug.Products[0].SKU)
	assert.True(t, mug.Products[0].Offerings[0].IsEnabled)
	assert.Equal(t, "MUG-L", mug.Products[1].SKU)
	assert.False(t, mug.Products[1].Offerings[0].IsEnabled)
	assert.InDelta(t, 12.00, mug.Products[1].Offerings[0].Price, 0.001)

	// Пустой listing_id означает создание
	plate := desired[1]
	assert.Equal(t, int64(0), plate.ListingID)
	assert.Equal(t, "Новая тарелка", plate.Title)
	assert.False(t, plate.ToDelete)

	// SKU со значением DELETE помечает листинг на удаление
	poster := desired[2]
	assert.Equal(t, int64(99), poster.ListingID)
	assert.True(t, poster.ToDelete)
	assert.Empty(t, poster.Products)
}

func TestParseDesired_InvalidListingID(t *testing.T) {
	csv := "listing_id,title\nabc,Кружка\n"

	_, err := ParseDesired(strings.NewReader(csv))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing_id")
}

func TestParseDesired_MissingRequiredColumn(t *testing.T) {
	csv := "title,price\nКружка,10\n"

	_, err := ParseDesired(strings.NewReader(csv))

	require.Error(t, err)
}

func TestParseDesired_EmptyFile(t *testing.T) {
	_, err := ParseDesired(strings.NewReader(""))
	require.Error(t, err)
}

func TestParseDesired_HeaderOnly(t *testing.T) {
	desired, err := ParseDesired(strings.NewReader("listing_id,title\n"))

	require.NoError(t, err)
	assert.Empty(t, desired)
}

func TestWriteListings_RoundTrip(t *testing.T) {
	listings := []models.Listing{
		{
			ListingID:   42,
			Title:       "Кружка",
			Description: "Керамическая кружка",
			Price:       10.00,
			Quantity:    5,
			State:       "active",
			Tags:        []string{"кухня", "керамика"},
			Products: []models.VariantProduct{
				{SKU: "MUG-S", Offerings: []models.Offering{{Price: 10, Quantity: 3, IsEnabled: true}}},
			},
		},
		{ListingID: 43, Title: "Тарелка", Price: 15.50, Quantity: 1, State: "draft"},
	}

	content, err := WriteListings(listings)
	require.NoError(t, err)

	parsed, err := ParseDesired(strings.NewReader(string(content)))
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.Equal(t, int64(42), parsed[0].ListingID)
	assert.Equal(t, []string{"кухня", "керамика"}, parsed[0].Tags)
	require.Len(t, parsed[0].Products, 1)
	assert.Equal(t, "MUG-S", parsed[0].Products[0].SKU)

	// Листинг без вариантов выживает как одна строка без SKU
	assert.Equal(t, int64(43), parsed[1].ListingID)
	assert.Empty(t, parsed[1].Products)
}
