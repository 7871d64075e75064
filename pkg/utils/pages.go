package utils

// PagePlan описывает план постраничной выборки по известному общему числу
// элементов и размеру страницы
type PagePlan struct {
	TotalItems int // общее количество элементов, сообщенное сервером
	PageSize   int // размер страницы
}

// NewPagePlan создает план постраничной выборки
func NewPagePlan(totalItems, pageSize int) PagePlan {
	if pageSize < 1 {
		pageSize = 1
	}
	if totalItems < 0 {
		totalItems = 0
	}
	return PagePlan{TotalItems: totalItems, PageSize: pageSize}
}

// Pages возвращает общее количество страниц
func (p PagePlan) Pages() int {
	return (p.TotalItems + p.PageSize - 1) / p.PageSize
}

// Offset возвращает смещение для страницы с указанным номером (начиная с 0)
func (p PagePlan) Offset(page int) int {
	return page * p.PageSize
}

// Batches разбивает страницы [from, Pages()) на группы не более batchSize
// страниц. Группы выбираются параллельно, но строго последовательно
// относительно друг друга
func (p PagePlan) Batches(from, batchSize int) [][]int {
	if batchSize < 1 {
		batchSize = 1
	}

	var batches [][]int
	var current []int
	for page := from; page < p.Pages(); page++ {
		current = append(current, page)
		if len(current) == batchSize {
			batches = append(batches, current)
			current = nil
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	return batches
}
