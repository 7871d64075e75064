package catalog

import (
	"context"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
)

// Port определяет интерфейс взаимодействия с удаленным API каталога
type Port interface {
	// ListListings возвращает одну страницу листингов магазина и общее
	// количество листингов, сообщенное сервером. Пустой stateFilter означает
	// все состояния
	ListListings(ctx context.Context, shopID int64, stateFilter string, limit, offset int) (int, []models.Listing, error)

	// GetListing получает листинг по ID вместе с инвентарем
	GetListing(ctx context.Context, listingID int64) (*models.Listing, error)

	// CreateListing создает новый листинг и возвращает его с присвоенным ID
	CreateListing(ctx context.Context, shopID int64, listing *models.Listing) (*models.Listing, error)

	// UpdateListing обновляет скалярные поля существующего листинга
	UpdateListing(ctx context.Context, shopID int64, listing *models.Listing) error

	// UpdateInventory заменяет инвентарь листинга
	UpdateInventory(ctx context.Context, listingID int64, products []models.VariantProduct) error

	// DeleteListing удаляет листинг
	DeleteListing(ctx context.Context, listingID int64) error

	// ResolveTaxonomyID находит ID узла таксономии по имени.
	// Результат кэшируется: в пределах одного запуска выполняется не более
	// одного запроса к API таксономии
	ResolveTaxonomyID(ctx context.Context, name string) (int64, error)
}
