package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/google/uuid"
)

// Топики для событий синхронизации
const (
	TopicSyncCommands = "sync-commands"
	TopicSyncEvents   = "sync-events"
	TopicDeadLetter   = "sync-dead-letter"
)

// Типы событий синхронизации
const (
	EventSyncRunStarted    = "sync.run.started"
	EventSyncBatchApplied  = "sync.batch.applied"
	EventSyncRunCompleted  = "sync.run.completed"
	EventSyncRunFailed     = "sync.run.failed"
	EventSyncBackupCreated = "sync.backup.created"
)

// Типы команд синхронизации
const (
	CommandApplyChanges = "sync.apply"
)

// BaseEvent базовая структура события
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ShopID    int64     `json:"shop_id"`
}

// SyncRunStartedEvent событие начала прогона синхронизации
type SyncRunStartedEvent struct {
	BaseEvent
	SourceHash string `json:"source_hash"`
	Total      int    `json:"total"`
	Resumed    bool   `json:"resumed"` // true, если прогон продолжен с контрольной точки
}

// SyncBatchAppliedEvent событие завершения пакета изменений
type SyncBatchAppliedEvent struct {
	BaseEvent
	SourceHash string `json:"source_hash"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
}

// SyncRunCompletedEvent событие завершения прогона синхронизации
type SyncRunCompletedEvent struct {
	BaseEvent
	SourceHash string        `json:"source_hash"`
	Processed  int           `json:"processed"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration_ns"`
}

// SyncRunFailedEvent событие аварийного завершения прогона
type SyncRunFailedEvent struct {
	BaseEvent
	SourceHash string `json:"source_hash"`
	Error      string `json:"error"`
}

// SyncBackupCreatedEvent событие создания резервной копии
type SyncBackupCreatedEvent struct {
	BaseEvent
	SourceHash string `json:"source_hash"`
	Filename   string `json:"filename"`
	Listings   int    `json:"listings"`
}

// ApplyChangesCommand команда на автономный прогон синхронизации.
// Команда несет CSV с желаемым состоянием целиком: воркер сам вычисляет
// изменения, делает резервную копию и применяет их. Пустой ChangeIDs
// означает одобрение всех вычисленных изменений
type ApplyChangesCommand struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	ShopID      int64    `json:"shop_id"`
	CSVContent  []byte   `json:"csv_content"`
	StateFilter string   `json:"state_filter,omitempty"`
	ChangeIDs   []string `json:"change_ids,omitempty"`
}

// NewBaseEvent создает базовое событие с заполненными служебными полями
func NewBaseEvent(eventType string, shopID int64) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ShopID:    shopID,
	}
}

// PublishEvent сериализует и публикует событие; ключом служит хэш исходного файла,
// чтобы все события одного прогона попадали в одну партицию
func PublishEvent(ctx context.Context, messaging interfaces.MessagingPort, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return messaging.PublishWithKey(ctx, TopicSyncEvents, key, payload)
}
