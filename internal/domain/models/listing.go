package models

// MaxListingTags — максимальное число тегов на листинг, ограничение удаленного каталога
const MaxListingTags = 13

// DeleteSKUSentinel — служебное значение SKU в CSV, помечающее листинг
// (или отдельный вариант) на удаление
const DeleteSKUSentinel = "DELETE"

// Listing представляет товарный листинг удаленного каталога.
// Движок синхронизации хранит только эфемерные копии: владельцем записи
// остается удаленная система
type Listing struct {
	ListingID   int64            `json:"listing_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Tags        []string         `json:"tags"`
	Price       float64          `json:"price"`
	Quantity    int              `json:"quantity"`
	State       string           `json:"state"` // "active", "inactive", "draft" и т.д.
	TaxonomyID  int64            `json:"taxonomy_id,omitempty"`
	Products    []VariantProduct `json:"products,omitempty"`
}

// VariantProduct представляет вариант листинга (размер, цвет и т.д.) с собственным SKU
type VariantProduct struct {
	ProductID int64      `json:"product_id,omitempty"`
	SKU       string     `json:"sku"`
	Offerings []Offering `json:"offerings"`
}

// Offering представляет торговое предложение варианта с собственной ценой и остатком
type Offering struct {
	OfferingID int64   `json:"offering_id,omitempty"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	IsEnabled  bool    `json:"is_enabled"`
}

// DesiredListing представляет желаемое состояние листинга, разобранное из
// отредактированного CSV. ListingID == 0 означает создание нового листинга,
// ToDelete — удаление существующего
type DesiredListing struct {
	Listing
	ToDelete bool `json:"to_delete"`
}

// RequiresPreImage сообщает, нужна ли листингу текущая копия из каталога
// перед применением (только для обновлений)
func (d *DesiredListing) RequiresPreImage() bool {
	return d.ListingID != 0 && !d.ToDelete
}
