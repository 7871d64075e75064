package services

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/google/uuid"
)

// priceEpsilon — допустимая погрешность сравнения цен в единицах валюты
const priceEpsilon = 0.01

// ComputePreview сравнивает желаемое состояние листингов с текущим состоянием
// каталога и возвращает набор типизированных изменений. Листинг без отличий
// не порождает изменения. Листинги, текущее состояние которых получить не
// удалось, пропускаются с записью в журнал
func (s *SyncService) ComputePreview(ctx context.Context, desired []models.DesiredListing) (*models.Preview, error) {
	preview := &models.Preview{}

	for i := range desired {
		d := &desired[i]

		switch {
		case d.ListingID == 0:
			// Новый листинг: удаленная проверка не нужна
			preview.Changes = append(preview.Changes, models.Change{
				ChangeID: uuid.New().String(),
				Type:     models.ChangeCreate,
				Title:    d.Title,
				Desired:  copyDesired(d),
			})
			preview.Summary.Creates++

		case d.ToDelete:
			// Удаление: решение не требует текущего состояния
			preview.Changes = append(preview.Changes, models.Change{
				ChangeID:  uuid.New().String(),
				Type:      models.ChangeDelete,
				ListingID: d.ListingID,
				Title:     d.Title,
				Desired:   copyDesired(d),
			})
			preview.Summary.Deletes++

		default:
			current, err := s.catalog.GetListing(ctx, d.ListingID)
			if err != nil || current == nil {
				errText := "listing not found"
				if err != nil {
					errText = err.Error()
				}
				s.logger.WarnWithContext(ctx, "Листинг пропущен: не удалось получить текущее состояние",
					interfaces.LogField{Key: "listing_id", Value: d.ListingID},
					interfaces.LogField{Key: "error", Value: errText},
				)
				continue
			}

			fields, variants := diffListing(current, d)
			if len(fields) == 0 && len(variants) == 0 {
				// Идемпотентный no-op: листинг уже в желаемом состоянии
				continue
			}

			preview.Changes = append(preview.Changes, models.Change{
				ChangeID:  uuid.New().String(),
				Type:      models.ChangeUpdate,
				ListingID: d.ListingID,
				Title:     d.Title,
				Fields:    fields,
				Variants:  variants,
				Desired:   copyDesired(d),
			})
			preview.Summary.Updates++
		}
	}

	return preview, nil
}

// diffListing вычисляет пары до/после на уровне полей и вариантов
func diffListing(current *models.Listing, desired *models.DesiredListing) ([]models.FieldDiff, []models.VariantDiff) {
	var fields []models.FieldDiff

	if !equalTrimmed(current.Title, desired.Title) {
		fields = append(fields, models.FieldDiff{Field: "title", Before: current.Title, After: desired.Title})
	}
	if !equalTrimmed(current.Description, desired.Description) {
		fields = append(fields, models.FieldDiff{Field: "description", Before: current.Description, After: desired.Description})
	}
	if !equalPrice(current.Price, desired.Price) {
		fields = append(fields, models.FieldDiff{
			Field:  "price",
			Before: formatPrice(current.Price),
			After:  formatPrice(desired.Price),
		})
	}
	if current.Quantity != desired.Quantity {
		fields = append(fields, models.FieldDiff{
			Field:  "quantity",
			Before: strconv.Itoa(current.Quantity),
			After:  strconv.Itoa(desired.Quantity),
		})
	}
	if !equalTrimmed(current.State, desired.State) && strings.TrimSpace(desired.State) != "" {
		fields = append(fields, models.FieldDiff{Field: "state", Before: current.State, After: desired.State})
	}
	if !equalTagSets(current.Tags, desired.Tags) {
		fields = append(fields, models.FieldDiff{
			Field:  "tags",
			Before: strings.Join(sortedTags(current.Tags), ";"),
			After:  strings.Join(sortedTags(desired.Tags), ";"),
		})
	}

	variants := diffVariants(current.Products, desired.Products)

	return fields, variants
}

// diffVariants сопоставляет варианты по SKU и вычисляет изменения предложений
func diffVariants(current, desired []models.VariantProduct) []models.VariantDiff {
	var diffs []models.VariantDiff

	currentBySKU := make(map[string]*models.VariantProduct, len(current))
	for i := range current {
		currentBySKU[strings.TrimSpace(current[i].SKU)] = &current[i]
	}

	seen := make(map[string]struct{}, len(desired))
	for i := range desired {
		d := &desired[i]
		sku := strings.TrimSpace(d.SKU)
		if sku == "" {
			continue
		}
		seen[sku] = struct{}{}

		cur, exists := currentBySKU[sku]
		if !exists {
			diffs = append(diffs, models.VariantDiff{SKU: sku, Field: "variant", Before: "", After: "added"})
			continue
		}

		curOffer := firstOffering(cur.Offerings)
		desOffer := firstOffering(d.Offerings)
		if curOffer == nil || desOffer == nil {
			continue
		}

		if !equalPrice(curOffer.Price, desOffer.Price) {
			diffs = append(diffs, models.VariantDiff{
				SKU:    sku,
				Field:  "price",
				Before: formatPrice(curOffer.Price),
				After:  formatPrice(desOffer.Price),
			})
		}
		if curOffer.Quantity != desOffer.Quantity {
			diffs = append(diffs, models.VariantDiff{
				SKU:    sku,
				Field:  "quantity",
				Before: strconv.Itoa(curOffer.Quantity),
				After:  strconv.Itoa(desOffer.Quantity),
			})
		}
		if curOffer.IsEnabled != desOffer.IsEnabled {
			diffs = append(diffs, models.VariantDiff{
				SKU:    sku,
				Field:  "is_enabled",
				Before: strconv.FormatBool(curOffer.IsEnabled),
				After:  strconv.FormatBool(desOffer.IsEnabled),
			})
		}
	}

	// Варианты, отсутствующие в желаемом состоянии, помечаются на удаление
	for i := range current {
		sku := strings.TrimSpace(current[i].SKU)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; !ok {
			diffs = append(diffs, models.VariantDiff{SKU: sku, Field: "variant", Before: "present", After: "removed"})
		}
	}

	return diffs
}

func firstOffering(offerings []models.Offering) *models.Offering {
	if len(offerings) == 0 {
		return nil
	}
	return &offerings[0]
}

// equalTrimmed сравнивает строки с обрезанными пробельными краями
func equalTrimmed(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// equalPrice сравнивает цены с допуском на погрешность округления
func equalPrice(a, b float64) bool {
	return math.Abs(a-b) < priceEpsilon
}

// equalTagSets сравнивает наборы тегов без учета порядка
func equalTagSets(a, b []string) bool {
	if len(normalizeTags(a)) != len(normalizeTags(b)) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range normalizeTags(a) {
		set[tag] = struct{}{}
	}
	for _, tag := range normalizeTags(b) {
		if _, ok := set[tag]; !ok {
			return false
		}
	}
	return true
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sortedTags(tags []string) []string {
	out := normalizeTags(tags)
	sort.Strings(out)
	return out
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

func copyDesired(d *models.DesiredListing) *models.DesiredListing {
	clone := *d
	return &clone
}
