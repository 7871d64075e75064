package services

import (
	"time"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
)

// RunState — состояние прогона применения изменений
type RunState int

const (
	RunNotStarted RunState = iota
	RunInProgress
	RunCompleted
)

// RunPlan — план прогона, вычисленный из контрольной точки и набора
// одобренных изменений. Все функции над планом чистые: сетевые вызовы и
// запись контрольной точки остаются за движком применения
type RunPlan struct {
	Checkpoint models.Checkpoint
	Pending    []models.Change // изменения, которые еще предстоит применить
	Skipped    int             // изменения, пропущенные по контрольной точке
}

// StateOf классифицирует контрольную точку
func StateOf(cp *models.Checkpoint) RunState {
	switch {
	case cp == nil:
		return RunNotStarted
	case cp.Completed():
		return RunCompleted
	default:
		return RunInProgress
	}
}

// BuildRunPlan отбирает одобренные изменения и исключает уже обработанные.
// Контрольная точка учитывается только при совпадении хэша исходного файла:
// точка от другого содержимого отбрасывается и прогон начинается заново.
// Изменения без идентификатора листинга (создания) сопоставить с точкой
// нельзя, поэтому при возобновлении они выполняются повторно
func BuildRunPlan(cp *models.Checkpoint, sourceHash string, changes []models.Change, approved models.ApprovalSet) RunPlan {
	var approvedChanges []models.Change
	for _, change := range changes {
		if approved.Contains(change.ChangeID) {
			approvedChanges = append(approvedChanges, change)
		}
	}

	if cp == nil || cp.SourceHash != sourceHash {
		return RunPlan{
			Checkpoint: NewCheckpoint(sourceHash, len(approvedChanges), approved),
			Pending:    approvedChanges,
		}
	}

	processed := cp.ProcessedSet()
	plan := RunPlan{Checkpoint: *cp}
	plan.Checkpoint.Total = len(approvedChanges)

	for _, change := range approvedChanges {
		if change.ListingID != 0 {
			if _, ok := processed[change.ListingID]; ok {
				plan.Skipped++
				continue
			}
		}
		plan.Pending = append(plan.Pending, change)
	}

	return plan
}

// NewCheckpoint создает свежую контрольную точку для прогона
func NewCheckpoint(sourceHash string, total int, approved models.ApprovalSet) models.Checkpoint {
	return models.Checkpoint{
		SourceHash:        sourceHash,
		Total:             total,
		ApprovedChangeIDs: approved.IDs(),
		UpdatedAt:         time.Now().UTC(),
	}
}

// AdvanceCheckpoint возвращает контрольную точку, продвинутую на один
// завершенный пакет. Идентификаторы добавляются без дубликатов
func AdvanceCheckpoint(cp models.Checkpoint, attempted, failed []int64) models.Checkpoint {
	cp.ProcessedIDs = appendUniqueIDs(cp.ProcessedIDs, attempted)
	cp.FailedIDs = appendUniqueIDs(cp.FailedIDs, failed)
	cp.UpdatedAt = time.Now().UTC()
	return cp
}

func appendUniqueIDs(existing, incoming []int64) []int64 {
	seen := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, id := range incoming {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		existing = append(existing, id)
	}
	return existing
}
