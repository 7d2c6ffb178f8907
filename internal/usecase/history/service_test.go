package history

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
	"gruz-board/internal/usecase/board"
)

type memHistory struct {
	byUser map[string][]string
	fail   bool
}

func newMemHistory() *memHistory {
	return &memHistory{byUser: make(map[string][]string)}
}

func (h *memHistory) PushViewed(_ context.Context, userID, listingID string, max int) error {
	if h.fail {
		return errors.New("хранилище недоступно")
	}
	ids := h.byUser[userID]
	filtered := make([]string, 0, len(ids)+1)
	filtered = append(filtered, listingID)
	for _, id := range ids {
		if id != listingID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) > max {
		filtered = filtered[:max]
	}
	h.byUser[userID] = filtered
	return nil
}

func (h *memHistory) RecentViewed(_ context.Context, userID string, max int) ([]string, error) {
	if h.fail {
		return nil, errors.New("хранилище недоступно")
	}
	ids := h.byUser[userID]
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func seedBoard(ids ...string) *board.Store {
	b := board.NewStore()
	items := make([]domain.Listing, 0, len(ids))
	for i, id := range ids {
		items = append(items, domain.Listing{
			ID: id, Kind: domain.KindTruck, Status: domain.StatusActive,
			CreatedAt: int64(i + 1), FromCity: "А", ToCity: "Б",
		})
	}
	b.ApplyRemoteSnapshot(items)
	return b
}

func user(id string) domain.Identity { return domain.Identity{ID: id} }

func TestRecordAndRecentOrder(t *testing.T) {
	ctx := context.Background()
	b := seedBoard("a", "b", "c")
	s := NewService(newMemHistory(), b, zerolog.Nop())

	s.Record(ctx, user("u1"), "a")
	s.Record(ctx, user("u1"), "b")
	s.Record(ctx, user("u1"), "a") // повторный просмотр поднимает запись наверх

	got, err := s.Recent(ctx, user("u1"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("ожидали порядок a,b без дублей, получили %+v", got)
	}
}

func TestRecentDropsVanished(t *testing.T) {
	ctx := context.Background()
	b := seedBoard("a")
	store := newMemHistory()
	s := NewService(store, b, zerolog.Nop())

	s.Record(ctx, user("u1"), "a")
	s.Record(ctx, user("u1"), "gone")

	got, err := s.Recent(ctx, user("u1"))
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("пропавшие записи должны выпадать: %+v", got)
	}
}

func TestRecordSkipsAnonymous(t *testing.T) {
	ctx := context.Background()
	store := newMemHistory()
	s := NewService(store, seedBoard("a"), zerolog.Nop())

	s.Record(ctx, domain.Anonymous(), "a")
	if len(store.byUser) != 0 {
		t.Fatalf("анонимные просмотры не должны записываться")
	}
	if _, err := s.Recent(ctx, domain.Anonymous()); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("ожидали ErrAuthRequired, получили %v", err)
	}
}

func TestRecordSurvivesStoreFailure(t *testing.T) {
	store := newMemHistory()
	store.fail = true
	s := NewService(store, seedBoard("a"), zerolog.Nop())
	// Не должно паниковать и не должно возвращать ошибку наружу.
	s.Record(context.Background(), user("u1"), "a")
}
