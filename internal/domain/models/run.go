package models

import "time"

// Статусы прогона синхронизации
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SyncRun журнальная запись прогона синхронизации
type SyncRun struct {
	ID         string     `json:"id"`
	ShopID     int64      `json:"shop_id"`
	SourceHash string     `json:"source_hash"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ListingBackup архивная копия листингов перед применением изменений
type ListingBackup struct {
	ID         string    `json:"id"`
	ShopID     int64     `json:"shop_id"`
	SourceHash string    `json:"source_hash"`
	Filename   string    `json:"filename"`
	Listings   int       `json:"listings"` // количество листингов в копии
	Content    []byte    `json:"-"`        // CSV-содержимое
	CreatedAt  time.Time `json:"created_at"`
}
