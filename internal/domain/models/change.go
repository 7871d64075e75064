package models

// ChangeType определяет тип изменения листинга
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// FieldDiff представляет изменение одного скалярного поля листинга
type FieldDiff struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// VariantDiff представляет изменение на уровне варианта листинга
type VariantDiff struct {
	SKU    string `json:"sku"`
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Change представляет одно типизированное изменение между желаемым и текущим
// состоянием листинга. ChangeID стабилен в течение одной сессии предпросмотра,
// чтобы набор одобренных изменений мог ссылаться на него позже
type Change struct {
	ChangeID  string        `json:"change_id"`
	Type      ChangeType    `json:"type"`
	ListingID int64         `json:"listing_id"` // 0 для создаваемых листингов
	Title     string        `json:"title"`
	Fields    []FieldDiff   `json:"fields,omitempty"`
	Variants  []VariantDiff `json:"variants,omitempty"`

	// Desired хранит желаемое состояние, из которого изменение было вычислено.
	// Нужен движку применения; в JSON-ответы API не сериализуется
	Desired *DesiredListing `json:"-"`
}

// PreviewSummary агрегирует количество изменений по типам для отображения.
// Сумма полей всегда равна общему числу изменений предпросмотра
type PreviewSummary struct {
	Creates int `json:"creates"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

// Total возвращает общее число изменений в сводке
func (s PreviewSummary) Total() int {
	return s.Creates + s.Updates + s.Deletes
}

// Preview представляет результат сравнения желаемого состояния с каталогом
type Preview struct {
	Changes []Change       `json:"changes"`
	Summary PreviewSummary `json:"summary"`
}

// ApprovalSet — множество ChangeID, одобренных пользователем.
// Изменения вне множества инертны и не применяются
type ApprovalSet map[string]struct{}

// NewApprovalSet создает множество одобренных изменений из списка идентификаторов
func NewApprovalSet(changeIDs ...string) ApprovalSet {
	set := make(ApprovalSet, len(changeIDs))
	for _, id := range changeIDs {
		set[id] = struct{}{}
	}
	return set
}

// Contains проверяет, одобрено ли изменение
func (a ApprovalSet) Contains(changeID string) bool {
	_, ok := a[changeID]
	return ok
}

// IDs возвращает идентификаторы одобренных изменений
func (a ApprovalSet) IDs() []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	return ids
}
