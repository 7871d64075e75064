package services

import (
	"context"
	"fmt"
	"time"

	"github.com/athebyme/listing-sync-platform/internal/adapters/csvio"
	"github.com/athebyme/listing-sync-platform/internal/adapters/messaging"
	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
)

// Snapshot экспортирует текущее состояние всех листингов, которые будут
// изменены одобренными изменениями. Учитываются только обновления и удаления:
// для создаваемых листингов резервировать нечего. Идентификаторы
// дедуплицируются, каждый листинг запрашивается заново, поскольку состояние
// каталога могло измениться после предпросмотра. Если после фильтрации не
// осталось ни одного листинга, копия не создается и возвращается nil
func (s *SyncService) Snapshot(ctx context.Context, preview *models.Preview, approved models.ApprovalSet, sourceHash string) (*models.ListingBackup, error) {
	ids := backupIDs(preview, approved)
	if len(ids) == 0 {
		return nil, nil
	}

	listings := make([]models.Listing, 0, len(ids))
	for _, id := range ids {
		listing, err := s.catalog.GetListing(ctx, id)
		if err != nil || listing == nil {
			errText := "listing not found"
			if err != nil {
				errText = err.Error()
			}
			s.logger.WarnWithContext(ctx, "Листинг не попал в резервную копию",
				interfaces.LogField{Key: "listing_id", Value: id},
				interfaces.LogField{Key: "error", Value: errText},
			)
			continue
		}
		listings = append(listings, *listing)
	}

	content, err := csvio.WriteListings(listings)
	if err != nil {
		return nil, fmt.Errorf("не удалось сериализовать резервную копию: %w", err)
	}

	backup := &models.ListingBackup{
		ShopID:     s.shopID,
		SourceHash: sourceHash,
		Filename:   fmt.Sprintf("listings-backup-%s.csv", time.Now().UTC().Format("2006-01-02")),
		Listings:   len(listings),
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	// Журналируем копию в БД, если хранилище подключено
	if s.storage != nil {
		if err := s.storage.SaveBackup(ctx, backup); err != nil {
			return nil, fmt.Errorf("не удалось сохранить резервную копию: %w", err)
		}
	}

	if s.messaging != nil {
		event := messaging.SyncBackupCreatedEvent{
			BaseEvent:  messaging.NewBaseEvent(messaging.EventSyncBackupCreated, s.shopID),
			SourceHash: sourceHash,
			Filename:   backup.Filename,
			Listings:   backup.Listings,
		}
		if err := messaging.PublishEvent(ctx, s.messaging, sourceHash, event); err != nil {
			s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие о резервной копии",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	return backup, nil
}

// backupIDs собирает уникальные идентификаторы листингов из одобренных
// обновлений и удалений, сохраняя порядок их первого появления
func backupIDs(preview *models.Preview, approved models.ApprovalSet) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64

	for _, change := range preview.Changes {
		if !approved.Contains(change.ChangeID) {
			continue
		}
		if change.Type != models.ChangeUpdate && change.Type != models.ChangeDelete {
			continue
		}
		if change.ListingID == 0 {
			continue
		}
		if _, ok := seen[change.ListingID]; ok {
			continue
		}
		seen[change.ListingID] = struct{}{}
		ids = append(ids, change.ListingID)
	}

	return ids
}
