package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
)

// Колонки CSV-файла. Одна строка соответствует одному варианту листинга;
// скалярные поля листинга повторяются в каждой его строке.
// Пустая колонка listing_id означает создание нового листинга,
// SKU со значением DELETE — удаление
var header = []string{
	"listing_id",
	"title",
	"description",
	"price",
	"quantity",
	"state",
	"tags",
	"sku",
	"variant_price",
	"variant_quantity",
	"variant_enabled",
}

const tagSeparator = ";"

// ParseDesired разбирает отредактированный CSV в список желаемых состояний
// листингов. Строки группируются по listing_id (для создаваемых листингов —
// по заголовку)
func ParseDesired(r io.Reader) ([]models.DesiredListing, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV не содержит строки заголовка")
	}

	cols, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var (
		desired []models.DesiredListing
		current *models.DesiredListing
		prevKey string
	)

	for i, row := range rows[1:] {
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		rawID := get("listing_id")
		var listingID int64
		if rawID != "" {
			listingID, err = strconv.ParseInt(rawID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("строка %d: некорректный listing_id %q: %w", i+2, rawID, err)
			}
		}

		// Ключ группировки: ID листинга либо заголовок для создаваемых
		key := rawID
		if key == "" {
			key = "new:" + get("title")
		}

		if current == nil || key != prevKey {
			if current != nil {
				desired = append(desired, *current)
			}

			listing := models.DesiredListing{}
			listing.ListingID = listingID
			listing.Title = get("title")
			listing.Description = get("description")
			listing.State = get("state")

			if raw := get("price"); raw != "" {
				listing.Price, err = strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("строка %d: некорректная цена %q: %w", i+2, raw, err)
				}
			}
			if raw := get("quantity"); raw != "" {
				listing.Quantity, err = strconv.Atoi(raw)
				if err != nil {
					return nil, fmt.Errorf("строка %d: некорректное количество %q: %w", i+2, raw, err)
				}
			}
			if raw := get("tags"); raw != "" {
				listing.Tags = splitTags(raw)
			}

			current = &listing
			prevKey = key
		}

		sku := get("sku")
		if sku == "" {
			continue
		}

		// Служебное значение SKU: удаление всего листинга
		if sku == models.DeleteSKUSentinel {
			current.ToDelete = true
			continue
		}

		variant := models.VariantProduct{SKU: sku}
		offering := models.Offering{IsEnabled: true}

		if raw := get("variant_price"); raw != "" {
			offering.Price, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("строка %d: некорректная цена варианта %q: %w", i+2, raw, err)
			}
		}
		if raw := get("variant_quantity"); raw != "" {
			offering.Quantity, err = strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("строка %d: некорректное количество варианта %q: %w", i+2, raw, err)
			}
		}
		if raw := get("variant_enabled"); raw != "" {
			offering.IsEnabled = raw == "true" || raw == "1"
		}

		variant.Offerings = []models.Offering{offering}
		current.Products = append(current.Products, variant)
	}

	if current != nil {
		desired = append(desired, *current)
	}

	return desired, nil
}

// WriteListings сериализует листинги в CSV для резервной копии.
// Листинг без вариантов записывается одной строкой с пустыми колонками варианта
func WriteListings(listings []models.Listing) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("ошибка записи заголовка CSV: %w", err)
	}

	for _, listing := range listings {
		base := []string{
			strconv.FormatInt(listing.ListingID, 10),
			listing.Title,
			listing.Description,
			formatPrice(listing.Price),
			strconv.Itoa(listing.Quantity),
			listing.State,
			strings.Join(listing.Tags, tagSeparator),
		}

		if len(listing.Products) == 0 {
			if err := writer.Write(append(base, "", "", "", "")); err != nil {
				return nil, fmt.Errorf("ошибка записи строки CSV: %w", err)
			}
			continue
		}

		for _, variant := range listing.Products {
			offering := models.Offering{}
			if len(variant.Offerings) > 0 {
				offering = variant.Offerings[0]
			}

			row := append(append([]string{}, base...),
				variant.SKU,
				formatPrice(offering.Price),
				strconv.Itoa(offering.Quantity),
				strconv.FormatBool(offering.IsEnabled),
			)
			if err := writer.Write(row); err != nil {
				return nil, fmt.Errorf("ошибка записи строки CSV: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("ошибка сериализации CSV: %w", err)
	}

	return buf.Bytes(), nil
}

// columnIndex строит отображение имени колонки в ее позицию
func columnIndex(headerRow []string) (map[string]int, error) {
	cols := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	if _, ok := cols["listing_id"]; !ok {
		return nil, fmt.Errorf("CSV не содержит обязательную колонку listing_id")
	}

	return cols, nil
}

// splitTags разбирает список тегов, разделенных точкой с запятой
func splitTags(raw string) []string {
	parts := strings.Split(raw, tagSeparator)
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// formatPrice форматирует цену с двумя знаками после запятой
func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}
