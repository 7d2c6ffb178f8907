package lifecycle

import "gruz-board/internal/domain"

// transitions единственная таблица допустимых переходов статуса.
// Никакой другой компонент не пишет статус напрямую. closed и cancelled
// терминальны. Истечение срока переходом не является: просроченная
// запись просто выпадает из активной выборки, статус остаётся active.
var transitions = map[domain.ListingStatus]map[domain.ListingStatus]bool{
	domain.StatusDraft: {
		domain.StatusActive: true,
	},
	domain.StatusActive: {
		domain.StatusActive:     true, // правка без смены статуса
		domain.StatusInProgress: true, // зарезервировано, интерфейс пока не использует
		domain.StatusClosed:     true,
		domain.StatusCancelled:  true,
	},
}

// CanTransition проверяет переход по таблице.
func CanTransition(from, to domain.ListingStatus) bool {
	return transitions[from][to]
}
