package models

import "time"

// Checkpoint представляет контрольную точку возобновляемого применения
// изменений. Точка привязана к хэшу содержимого исходного CSV: при изменении
// файла точка становится недействительной и запуск начинается заново.
// Точку изменяет только движок применения, один раз на завершенный батч;
// при полном завершении запуска точка удаляется
type Checkpoint struct {
	SourceHash        string    `json:"source_hash"`
	Total             int       `json:"total"`
	ProcessedIDs      []int64   `json:"processed_ids"`
	FailedIDs         []int64   `json:"failed_ids"`
	ApprovedChangeIDs []string  `json:"approved_change_ids"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProcessedSet возвращает множество уже обработанных идентификаторов листингов
func (c *Checkpoint) ProcessedSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(c.ProcessedIDs))
	for _, id := range c.ProcessedIDs {
		set[id] = struct{}{}
	}
	return set
}

// Completed сообщает, все ли изменения запуска были предприняты
func (c *Checkpoint) Completed() bool {
	return len(c.ProcessedIDs) >= c.Total && c.Total > 0
}
