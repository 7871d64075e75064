package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	apperrors "github.com/athebyme/listing-sync-platform/pkg/errors"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/athebyme/listing-sync-platform/pkg/retry"
	"github.com/athebyme/listing-sync-platform/pkg/utils"
)

// pageResult — результат выгрузки одной страницы
type pageResult struct {
	page     int
	listings []models.Listing
	err      error
}

// FetchAll выгружает полный набор листингов магазина постранично.
// Возвращает общее количество листингов по данным сервера и список без
// дубликатов. Список может быть меньше заявленного количества, если отдельные
// страницы не удалось получить: выгрузка считается завершенной по мере
// возможности, а не точной. Пустой stateFilter означает все состояния
func (s *SyncService) FetchAll(ctx context.Context, stateFilter string, onProgress ProgressFunc) (int, []models.Listing, error) {
	// Первая страница определяет общее количество листингов
	total, firstPage, err := s.catalog.ListListings(ctx, s.shopID, stateFilter, s.opts.PageSize, 0)
	if err != nil {
		return 0, nil, fmt.Errorf("не удалось получить первую страницу листингов: %w", err)
	}

	// Множество увиденных идентификаторов локально для одного вызова:
	// дубликат с последующих страниц отбрасывается, побеждает первая копия
	seen := make(map[int64]struct{}, total)
	items := make([]models.Listing, 0, total)
	items = appendUnique(items, seen, firstPage)

	// Ранний выход: первая страница уже содержит все листинги
	if len(items) >= total {
		if onProgress != nil {
			onProgress(len(items), total, 0)
		}
		return total, items, nil
	}

	plan := utils.NewPagePlan(total, s.opts.PageSize)
	pagePolicy := retry.Fixed(s.opts.PageRetries+1, s.opts.PageRetryPause, apperrors.IsRetryable)

	failedPages := 0
	for i, batch := range plan.Batches(1, s.opts.FetchWorkers) {
		// Пауза между пакетами страниц, чтобы не упереться в лимиты API
		if i > 0 && s.opts.FetchBatchPause > 0 {
			select {
			case <-ctx.Done():
				return total, items, ctx.Err()
			case <-time.After(s.opts.FetchBatchPause):
			}
		}

		results := make([]pageResult, len(batch))
		var wg sync.WaitGroup
		for j, page := range batch {
			wg.Add(1)
			go func(slot, page int) {
				defer wg.Done()
				var listings []models.Listing
				err := retry.Do(ctx, pagePolicy, func(ctx context.Context) error {
					_, pageListings, err := s.catalog.ListListings(ctx, s.shopID, stateFilter, s.opts.PageSize, plan.Offset(page))
					if err != nil {
						return err
					}
					listings = pageListings
					return nil
				})
				results[slot] = pageResult{page: page, listings: listings, err: err}
			}(j, page)
		}
		wg.Wait()

		// Страницы пакета вливаются в результат в порядке возрастания номера,
		// чтобы дедупликация оставалась детерминированной
		for _, res := range results {
			if res.err != nil {
				failedPages++
				s.logger.WarnWithContext(ctx, "Страница листингов пропущена после исчерпания повторов",
					interfaces.LogField{Key: "page", Value: res.page},
					interfaces.LogField{Key: "error", Value: res.err.Error()},
				)
				continue
			}
			items = appendUnique(items, seen, res.listings)
		}

		if onProgress != nil {
			onProgress(len(items), total, failedPages)
		}

		// Останавливаемся, как только собрали все заявленные листинги
		if len(items) >= total {
			break
		}
	}

	return total, items, nil
}

// appendUnique добавляет листинги, идентификаторы которых еще не встречались
func appendUnique(items []models.Listing, seen map[int64]struct{}, page []models.Listing) []models.Listing {
	for _, listing := range page {
		if _, ok := seen[listing.ListingID]; ok {
			continue
		}
		seen[listing.ListingID] = struct{}{}
		items = append(items, listing)
	}
	return items
}
