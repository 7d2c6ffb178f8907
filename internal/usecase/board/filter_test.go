package board

import (
	"testing"

	"gruz-board/internal/domain"
)

func TestActiveListingsExpiryBoundary(t *testing.T) {
	const now int64 = 1_000_000

	cases := []struct {
		name    string
		status  domain.ListingStatus
		expires int64
		visible bool
	}{
		{"активное без срока", domain.StatusActive, 0, true},
		{"активное, срок в будущем", domain.StatusActive, now + 1, true},
		{"активное, срок истёк", domain.StatusActive, now - 1, false},
		{"активное, срок ровно сейчас", domain.StatusActive, now, false},
		{"закрытое, срок в будущем", domain.StatusClosed, now + 1, false},
		{"черновик", domain.StatusDraft, now + 1, false},
	}

	for _, tc := range cases {
		l := listing("id", 1)
		l.Status = tc.status
		l.ExpiresAt = tc.expires
		got := ActiveListings([]domain.Listing{l}, now)
		if (len(got) == 1) != tc.visible {
			t.Fatalf("%s: ожидали visible=%v", tc.name, tc.visible)
		}
	}
}

func TestActiveListingsDoesNotMutateStatus(t *testing.T) {
	const now int64 = 500
	l := listing("id", 1)
	l.ExpiresAt = now - 1
	all := []domain.Listing{l}

	_ = ActiveListings(all, now)
	if all[0].Status != domain.StatusActive {
		t.Fatalf("истечение не должно менять сохранённый статус")
	}
}

func TestSearchRouteFilter(t *testing.T) {
	a := listing("a", 3)
	b := listing("b", 2)
	b.Kind = domain.KindCargo
	b.Truck = nil
	b.Cargo = &domain.CargoDetails{Weight: 10, CargoType: "зерно", Currency: "USD"}
	b.FromCity = "Бухара"
	c := listing("c", 1)
	c.Urgent = true

	items := []domain.Listing{a, b, c}

	if got := Search(items, SearchQuery{Kind: domain.KindCargo}); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("фильтр по виду вернул %v", got)
	}
	if got := Search(items, SearchQuery{From: "таш"}); len(got) != 2 {
		t.Fatalf("фильтр по городу без регистра вернул %d записей", len(got))
	}
	if got := Search(items, SearchQuery{UrgentOnly: true}); len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("фильтр срочных вернул %v", got)
	}
}

func TestCountStats(t *testing.T) {
	a := listing("a", 3)
	b := listing("b", 2)
	b.Kind = domain.KindCargo
	b.Urgent = true

	st := CountStats([]domain.Listing{a, b})
	if st.Trucks != 1 || st.Cargos != 1 || st.Urgent != 1 {
		t.Fatalf("неожиданная сводка: %+v", st)
	}
}
