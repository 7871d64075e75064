package services

import (
	"testing"

	"github.com/athebyme/listing-sync-platform/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func changesFixture() ([]models.Change, models.ApprovalSet) {
	changes := []models.Change{
		{ChangeID: "c1", Type: models.ChangeUpdate, ListingID: 1},
		{ChangeID: "c2", Type: models.ChangeUpdate, ListingID: 2},
		{ChangeID: "c3", Type: models.ChangeCreate, ListingID: 0},
		{ChangeID: "c4", Type: models.ChangeDelete, ListingID: 4},
		{ChangeID: "c5", Type: models.ChangeUpdate, ListingID: 5},
	}
	approved := models.NewApprovalSet("c1", "c2", "c3", "c4")
	return changes, approved
}

func TestBuildRunPlan_FreshRun(t *testing.T) {
	changes, approved := changesFixture()

	plan := BuildRunPlan(nil, "hash-a", changes, approved)

	// Неодобренное изменение c5 в план не попадает
	assert.Len(t, plan.Pending, 4)
	assert.Equal(t, 0, plan.Skipped)
	assert.Equal(t, "hash-a", plan.Checkpoint.SourceHash)
	assert.Equal(t, 4, plan.Checkpoint.Total)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3", "c4"}, plan.Checkpoint.ApprovedChangeIDs)
}

func TestBuildRunPlan_ResumeSkipsProcessed(t *testing.T) {
	changes, approved := changesFixture()
	cp := &models.Checkpoint{
		SourceHash:   "hash-a",
		Total:        4,
		ProcessedIDs: []int64{1, 4},
	}

	plan := BuildRunPlan(cp, "hash-a", changes, approved)

	assert.Equal(t, 2, plan.Skipped)
	require.Len(t, plan.Pending, 2)
	assert.Equal(t, "c2", plan.Pending[0].ChangeID)
	// Создание не имеет идентификатора и при возобновлении выполняется повторно
	assert.Equal(t, "c3", plan.Pending[1].ChangeID)
}

func TestBuildRunPlan_HashMismatchDiscardsCheckpoint(t *testing.T) {
	changes, approved := changesFixture()
	cp := &models.Checkpoint{
		SourceHash:   "hash-old",
		Total:        4,
		ProcessedIDs: []int64{1, 2, 4},
	}

	plan := BuildRunPlan(cp, "hash-new", changes, approved)

	// Точка от другого файла отбрасывается: прогон начинается заново
	assert.Equal(t, 0, plan.Skipped)
	assert.Len(t, plan.Pending, 4)
	assert.Equal(t, "hash-new", plan.Checkpoint.SourceHash)
	assert.Empty(t, plan.Checkpoint.ProcessedIDs)
}

func TestAdvanceCheckpoint(t *testing.T) {
	cp := models.Checkpoint{
		SourceHash:   "hash-a",
		Total:        4,
		ProcessedIDs: []int64{1},
	}

	next := AdvanceCheckpoint(cp, []int64{1, 2, 0, 4}, []int64{4})

	// Нули и дубликаты не попадают в точку
	assert.Equal(t, []int64{1, 2, 4}, next.ProcessedIDs)
	assert.Equal(t, []int64{4}, next.FailedIDs)
	assert.False(t, next.UpdatedAt.IsZero())
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, RunNotStarted, StateOf(nil))

	inProgress := &models.Checkpoint{Total: 3, ProcessedIDs: []int64{1}}
	assert.Equal(t, RunInProgress, StateOf(inProgress))

	completed := &models.Checkpoint{Total: 2, ProcessedIDs: []int64{1, 2}}
	assert.Equal(t, RunCompleted, StateOf(completed))
}
