package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/athebyme/listing-sync-platform/internal/adapters/messaging"
	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	apperrors "github.com/athebyme/listing-sync-platform/pkg/errors"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
)

// applyOutcome — результат применения одного изменения
type applyOutcome struct {
	listingID int64
	failed    bool
}

// Apply применяет одобренные изменения к каталогу последовательными пакетами
// с контрольными точками. Прогон привязан к хэшу содержимого исходного CSV:
// при повторном запуске с тем же файлом уже обработанные листинги
// пропускаются. Контрольная точка записывается после каждого завершенного
// пакета и удаляется при полном завершении. Ошибка отдельного элемента
// фиксируется, но не прерывает ни пакет, ни прогон
func (s *SyncService) Apply(ctx context.Context, sourceHash string, changes []models.Change, approved models.ApprovalSet, onProgress ProgressFunc) error {
	cp, err := s.loadCheckpoint(ctx, sourceHash)
	if err != nil {
		s.publishRunFailed(ctx, sourceHash, err)
		return fmt.Errorf("не удалось загрузить контрольную точку: %w", err)
	}

	plan := BuildRunPlan(cp, sourceHash, changes, approved)
	resumed := plan.Skipped > 0

	run := &models.SyncRun{
		ShopID:     s.shopID,
		SourceHash: sourceHash,
		Status:     models.RunStatusRunning,
		Total:      plan.Checkpoint.Total,
		Processed:  plan.Skipped,
		Failed:     len(plan.Checkpoint.FailedIDs),
		StartedAt:  time.Now().UTC(),
	}
	if s.storage != nil {
		if err := s.storage.SaveRun(ctx, run); err != nil {
			s.logger.WarnWithContext(ctx, "Не удалось записать прогон в журнал",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	s.publishRunStarted(ctx, sourceHash, plan.Checkpoint.Total, resumed)

	// Прообразы нужны только обновлениям: текущее состояние подмешивает
	// поля, которых нет в CSV
	preImages := s.fetchPreImages(ctx, plan.Pending)

	started := time.Now()
	checkpoint := plan.Checkpoint
	attemptedTotal := plan.Skipped
	failedNoID := 0 // неудачные создания не имеют идентификатора и в точку не попадают

	for start := 0; start < len(plan.Pending); start += s.opts.ApplyBatchSize {
		end := start + s.opts.ApplyBatchSize
		if end > len(plan.Pending) {
			end = len(plan.Pending)
		}
		batch := plan.Pending[start:end]

		outcomes := make([]applyOutcome, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(slot int, change models.Change) {
				defer wg.Done()
				outcomes[slot] = s.applyChange(ctx, change, preImages)
			}(i, batch[i])
		}
		wg.Wait()

		var attempted, failed []int64
		for _, outcome := range outcomes {
			if outcome.listingID != 0 {
				attempted = append(attempted, outcome.listingID)
			}
			if outcome.failed {
				if outcome.listingID != 0 {
					failed = append(failed, outcome.listingID)
				} else {
					failedNoID++
				}
			}
		}
		attemptedTotal += len(batch)

		// Контрольная точка записывается строго после завершения всего
		// пакета и до начала следующего
		checkpoint = AdvanceCheckpoint(checkpoint, attempted, failed)
		if err := s.saveCheckpoint(ctx, &checkpoint); err != nil {
			s.logger.ErrorWithContext(ctx, "Не удалось сохранить контрольную точку",
				interfaces.LogField{Key: "source_hash", Value: sourceHash},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}

		failedTotal := len(checkpoint.FailedIDs) + failedNoID
		if onProgress != nil {
			onProgress(attemptedTotal, checkpoint.Total, failedTotal)
		}
		s.publishBatchApplied(ctx, sourceHash, attemptedTotal, failedTotal, checkpoint.Total)

		if s.storage != nil {
			run.Processed = attemptedTotal
			run.Failed = failedTotal
			if err := s.storage.SaveRun(ctx, run); err != nil {
				s.logger.WarnWithContext(ctx, "Не удалось обновить прогон в журнале",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}
	}

	// Все одобренные изменения предприняты: точка больше не нужна
	if err := s.checkpoints.Clear(ctx, sourceHash); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось удалить контрольную точку",
			interfaces.LogField{Key: "source_hash", Value: sourceHash},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}

	failedTotal := len(checkpoint.FailedIDs) + failedNoID
	if s.storage != nil {
		now := time.Now().UTC()
		run.Status = models.RunStatusCompleted
		run.Processed = attemptedTotal
		run.Failed = failedTotal
		run.FinishedAt = &now
		if err := s.storage.SaveRun(ctx, run); err != nil {
			s.logger.WarnWithContext(ctx, "Не удалось завершить прогон в журнале",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	s.publishRunCompleted(ctx, sourceHash, attemptedTotal, failedTotal, time.Since(started))

	return nil
}

// applyChange применяет одно изменение и возвращает его результат
func (s *SyncService) applyChange(ctx context.Context, change models.Change, preImages map[int64]*models.Listing) applyOutcome {
	switch change.Type {
	case models.ChangeCreate:
		return s.applyCreate(ctx, change)
	case models.ChangeUpdate:
		return s.applyUpdate(ctx, change, preImages)
	case models.ChangeDelete:
		return s.applyDelete(ctx, change)
	default:
		s.logger.WarnWithContext(ctx, "Неизвестный тип изменения пропущен",
			interfaces.LogField{Key: "change_id", Value: change.ChangeID},
			interfaces.LogField{Key: "type", Value: string(change.Type)},
		)
		return applyOutcome{listingID: change.ListingID}
	}
}

func (s *SyncService) applyCreate(ctx context.Context, change models.Change) applyOutcome {
	listing := change.Desired.Listing

	// Категория разрешается не более одного раза за прогон: клиент каталога
	// кэширует дерево таксономии
	if listing.TaxonomyID == 0 && s.opts.DefaultTaxonomy != "" {
		taxonomyID, err := s.catalog.ResolveTaxonomyID(ctx, s.opts.DefaultTaxonomy)
		if err != nil {
			s.logger.WarnWithContext(ctx, "Не удалось разрешить таксономию, листинг создается без категории",
				interfaces.LogField{Key: "taxonomy", Value: s.opts.DefaultTaxonomy},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		} else {
			listing.TaxonomyID = taxonomyID
		}
	}

	created, err := s.catalog.CreateListing(ctx, s.shopID, &listing)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Не удалось создать листинг",
			interfaces.LogField{Key: "title", Value: change.Title},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return applyOutcome{failed: true}
	}

	// Инвентарь заполняется по мере возможности: листинг уже существует,
	// поэтому ошибка инвентаря не отменяет успех создания
	if len(listing.Products) > 0 {
		if err := s.catalog.UpdateInventory(ctx, created.ListingID, listing.Products); err != nil {
			s.logger.WarnWithContext(ctx, "Листинг создан, но инвентарь обновить не удалось",
				interfaces.LogField{Key: "listing_id", Value: created.ListingID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
	}

	return applyOutcome{listingID: created.ListingID}
}

func (s *SyncService) applyUpdate(ctx context.Context, change models.Change, preImages map[int64]*models.Listing) applyOutcome {
	listing := change.Desired.Listing

	// Прообраз дополняет поля, которых нет в CSV
	if pre, ok := preImages[change.ListingID]; ok && pre != nil {
		if listing.TaxonomyID == 0 {
			listing.TaxonomyID = pre.TaxonomyID
		}
		if listing.State == "" {
			listing.State = pre.State
		}
	}

	if err := s.catalog.UpdateListing(ctx, s.shopID, &listing); err != nil {
		s.logger.ErrorWithContext(ctx, "Не удалось обновить листинг",
			interfaces.LogField{Key: "listing_id", Value: change.ListingID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return applyOutcome{listingID: change.ListingID, failed: true}
	}

	if len(listing.Products) > 0 {
		if err := s.catalog.UpdateInventory(ctx, change.ListingID, listing.Products); err != nil {
			s.logger.ErrorWithContext(ctx, "Не удалось обновить инвентарь листинга",
				interfaces.LogField{Key: "listing_id", Value: change.ListingID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			return applyOutcome{listingID: change.ListingID, failed: true}
		}
	}

	return applyOutcome{listingID: change.ListingID}
}

func (s *SyncService) applyDelete(ctx context.Context, change models.Change) applyOutcome {
	// Удаление без идентификатора — тихий no-op: удалять нечего,
	// но прогон продвигается дальше
	if change.ListingID == 0 {
		return applyOutcome{}
	}

	if err := s.catalog.DeleteListing(ctx, change.ListingID); err != nil {
		s.logger.ErrorWithContext(ctx, "Не удалось удалить листинг",
			interfaces.LogField{Key: "listing_id", Value: change.ListingID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return applyOutcome{listingID: change.ListingID, failed: true}
	}

	return applyOutcome{listingID: change.ListingID}
}

// fetchPreImages выбирает текущее состояние обновляемых листингов
// подпакетами ограниченного размера. Ошибка выборки одного листинга
// журналируется, обновление в этом случае применяется без прообраза
func (s *SyncService) fetchPreImages(ctx context.Context, pending []models.Change) map[int64]*models.Listing {
	var ids []int64
	for _, change := range pending {
		if change.Desired != nil && change.Desired.RequiresPreImage() {
			ids = append(ids, change.ListingID)
		}
	}

	preImages := make(map[int64]*models.Listing, len(ids))
	if len(ids) == 0 {
		return preImages
	}

	var mu sync.Mutex
	for start := 0; start < len(ids); start += s.opts.PreImageBatch {
		end := start + s.opts.PreImageBatch
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				listing, err := s.catalog.GetListing(ctx, id)
				if err != nil {
					s.logger.WarnWithContext(ctx, "Не удалось получить прообраз листинга",
						interfaces.LogField{Key: "listing_id", Value: id},
						interfaces.LogField{Key: "error", Value: err.Error()},
					)
					return
				}
				mu.Lock()
				preImages[id] = listing
				mu.Unlock()
			}(id)
		}
		wg.Wait()
	}

	return preImages
}

// loadCheckpoint читает контрольную точку прогона; отсутствие точки не ошибка
func (s *SyncService) loadCheckpoint(ctx context.Context, sourceHash string) (*models.Checkpoint, error) {
	data, err := s.checkpoints.Load(ctx, sourceHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrCheckpointMiss) {
			return nil, nil
		}
		return nil, err
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		// Поврежденная точка равносильна отсутствующей: прогон начнется заново
		s.logger.WarnWithContext(ctx, "Контрольная точка повреждена и будет отброшена",
			interfaces.LogField{Key: "source_hash", Value: sourceHash},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil, nil
	}

	return &cp, nil
}

func (s *SyncService) saveCheckpoint(ctx context.Context, cp *models.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.checkpoints.Save(ctx, cp.SourceHash, data)
}

func (s *SyncService) publishRunStarted(ctx context.Context, sourceHash string, total int, resumed bool) {
	if s.messaging == nil {
		return
	}
	event := messaging.SyncRunStartedEvent{
		BaseEvent:  messaging.NewBaseEvent(messaging.EventSyncRunStarted, s.shopID),
		SourceHash: sourceHash,
		Total:      total,
		Resumed:    resumed,
	}
	if err := messaging.PublishEvent(ctx, s.messaging, sourceHash, event); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие о начале прогона",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func (s *SyncService) publishBatchApplied(ctx context.Context, sourceHash string, processed, failed, total int) {
	if s.messaging == nil {
		return
	}
	event := messaging.SyncBatchAppliedEvent{
		BaseEvent:  messaging.NewBaseEvent(messaging.EventSyncBatchApplied, s.shopID),
		SourceHash: sourceHash,
		Processed:  processed,
		Failed:     failed,
		Total:      total,
	}
	if err := messaging.PublishEvent(ctx, s.messaging, sourceHash, event); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие о пакете",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func (s *SyncService) publishRunFailed(ctx context.Context, sourceHash string, cause error) {
	if s.messaging == nil {
		return
	}
	event := messaging.SyncRunFailedEvent{
		BaseEvent:  messaging.NewBaseEvent(messaging.EventSyncRunFailed, s.shopID),
		SourceHash: sourceHash,
		Error:      cause.Error(),
	}
	if err := messaging.PublishEvent(ctx, s.messaging, sourceHash, event); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие об ошибке прогона",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func (s *SyncService) publishRunCompleted(ctx context.Context, sourceHash string, processed, failed int, duration time.Duration) {
	if s.messaging == nil {
		return
	}
	event := messaging.SyncRunCompletedEvent{
		BaseEvent:  messaging.NewBaseEvent(messaging.EventSyncRunCompleted, s.shopID),
		SourceHash: sourceHash,
		Processed:  processed,
		Failed:     failed,
		Duration:   duration,
	}
	if err := messaging.PublishEvent(ctx, s.messaging, sourceHash, event); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось опубликовать событие о завершении прогона",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}
