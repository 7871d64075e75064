package catalog

import (
	"math"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
)

// priceDTO представляет денежную сумму в формате удаленного API (amount/divisor)
type priceDTO struct {
	Amount       int64  `json:"amount"`
	Divisor      int64  `json:"divisor"`
	CurrencyCode string `json:"currency_code"`
}

// toFloat переводит сумму в единицы валюты листинга
func (p priceDTO) toFloat() float64 {
	if p.Divisor == 0 {
		return 0
	}
	return float64(p.Amount) / float64(p.Divisor)
}

// newPriceDTO переводит цену из единиц валюты в формат amount/divisor
func newPriceDTO(price float64) priceDTO {
	return priceDTO{
		Amount:  int64(math.Round(price * 100)),
		Divisor: 100,
	}
}

// offeringDTO представляет торговое предложение варианта
type offeringDTO struct {
	OfferingID int64    `json:"offering_id,omitempty"`
	Price      priceDTO `json:"price"`
	Quantity   int      `json:"quantity"`
	IsEnabled  bool     `json:"is_enabled"`
}

// productDTO представляет вариант листинга в инвентаре
type productDTO struct {
	ProductID int64         `json:"product_id,omitempty"`
	SKU       string        `json:"sku"`
	Offerings []offeringDTO `json:"offerings"`
}

// inventoryDTO представляет инвентарь листинга
type inventoryDTO struct {
	Products []productDTO `json:"products"`
}

// listingDTO представляет листинг в формате удаленного API
type listingDTO struct {
	ListingID   int64         `json:"listing_id"`
	ShopID      int64         `json:"shop_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	State       string        `json:"state"`
	Quantity    int           `json:"quantity"`
	Tags        []string      `json:"tags"`
	Price       priceDTO      `json:"price"`
	TaxonomyID  int64         `json:"taxonomy_id"`
	Inventory   *inventoryDTO `json:"inventory,omitempty"`
}

// listingsResponse представляет ответ списочных эндпоинтов: {count, results[]}
type listingsResponse struct {
	Count   int          `json:"count"`
	Results []listingDTO `json:"results"`
}

// taxonomyNodeDTO представляет узел товарной таксономии
type taxonomyNodeDTO struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Children []taxonomyNodeDTO `json:"children,omitempty"`
}

// taxonomyResponse представляет ответ эндпоинта таксономии
type taxonomyResponse struct {
	Count   int               `json:"count"`
	Results []taxonomyNodeDTO `json:"results"`
}

// toDomain преобразует DTO листинга в доменную модель
func (d listingDTO) toDomain() models.Listing {
	listing := models.Listing{
		ListingID:   d.ListingID,
		Title:       d.Title,
		Description: d.Description,
		Tags:        d.Tags,
		Price:       d.Price.toFloat(),
		Quantity:    d.Quantity,
		State:       d.State,
		TaxonomyID:  d.TaxonomyID,
	}

	if d.Inventory != nil {
		listing.Products = make([]models.VariantProduct, 0, len(d.Inventory.Products))
		for _, p := range d.Inventory.Products {
			variant := models.VariantProduct{
				ProductID: p.ProductID,
				SKU:       p.SKU,
				Offerings: make([]models.Offering, 0, len(p.Offerings)),
			}
			for _, o := range p.Offerings {
				variant.Offerings = append(variant.Offerings, models.Offering{
					OfferingID: o.OfferingID,
					Price:      o.Price.toFloat(),
					Quantity:   o.Quantity,
					IsEnabled:  o.IsEnabled,
				})
			}
			listing.Products = append(listing.Products, variant)
		}
	}

	return listing
}

// listingPayload представляет тело запроса создания/обновления листинга
type listingPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	State       string   `json:"state,omitempty"`
	Quantity    int      `json:"quantity"`
	Tags        []string `json:"tags"`
	Price       float64  `json:"price"`
	TaxonomyID  int64    `json:"taxonomy_id,omitempty"`
}

// newListingPayload строит тело запроса из доменной модели
func newListingPayload(l *models.Listing) listingPayload {
	return listingPayload{
		Title:       l.Title,
		Description: l.Description,
		State:       l.State,
		Quantity:    l.Quantity,
		Tags:        l.Tags,
		Price:       l.Price,
		TaxonomyID:  l.TaxonomyID,
	}
}

// inventoryPayload представляет тело запроса обновления инвентаря
type inventoryPayload struct {
	Products []productDTO `json:"products"`
}

// newInventoryPayload строит тело запроса обновления инвентаря
func newInventoryPayload(products []models.VariantProduct) inventoryPayload {
	payload := inventoryPayload{Products: make([]productDTO, 0, len(products))}
	for _, p := range products {
		dto := productDTO{
			ProductID: p.ProductID,
			SKU:       p.SKU,
			Offerings: make([]offeringDTO, 0, len(p.Offerings)),
		}
		for _, o := range p.Offerings {
			dto.Offerings = append(dto.Offerings, offeringDTO{
				OfferingID: o.OfferingID,
				Price:      newPriceDTO(o.Price),
				Quantity:   o.Quantity,
				IsEnabled:  o.IsEnabled,
			})
		}
		payload.Products = append(payload.Products, dto)
	}
	return payload
}
