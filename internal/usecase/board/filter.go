package board

import (
	"strings"

	"gruz-board/internal/domain"
)

// ActiveListings чистая проекция «видимого» подмножества: статус active
// и срок не истёк. Истечение — вычисление на момент чтения, не переход:
// сохранённый статус записи не меняется. Результат не кэшируется,
// порядок наследуется от входа.
func ActiveListings(all []domain.Listing, now int64) []domain.Listing {
	out := make([]domain.Listing, 0, len(all))
	for _, l := range all {
		if l.Status != domain.StatusActive {
			continue
		}
		if l.Expired(now) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// SearchQuery фильтры списочного экрана.
type SearchQuery struct {
	Kind       domain.ListingKind
	From       string
	To         string
	UrgentOnly bool
}

// Search фильтрует список по виду, маршруту и срочности. Города
// сравниваются по подстроке без учёта регистра.
func Search(items []domain.Listing, q SearchQuery) []domain.Listing {
	from := strings.ToLower(strings.TrimSpace(q.From))
	to := strings.ToLower(strings.TrimSpace(q.To))
	out := make([]domain.Listing, 0, len(items))
	for _, l := range items {
		if q.Kind != "" && l.Kind != q.Kind {
			continue
		}
		if q.UrgentOnly && !l.Urgent {
			continue
		}
		if from != "" && !strings.Contains(strings.ToLower(l.FromCity), from) {
			continue
		}
		if to != "" && !strings.Contains(strings.ToLower(l.ToCity), to) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Stats счётчики активных объявлений для живой сводки.
type Stats struct {
	Trucks int `json:"trucks"`
	Cargos int `json:"cargos"`
	Urgent int `json:"urgent"`
}

// CountStats считает сводку по активному набору.
func CountStats(active []domain.Listing) Stats {
	var st Stats
	for _, l := range active {
		switch l.Kind {
		case domain.KindTruck:
			st.Trucks++
		case domain.KindCargo:
			st.Cargos++
		}
		if l.Urgent {
			st.Urgent++
		}
	}
	return st
}
