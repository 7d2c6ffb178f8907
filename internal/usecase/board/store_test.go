package board

import (
	"errors"
	"testing"

	"gruz-board/internal/domain"
)

func listing(id string, createdAt int64) domain.Listing {
	return domain.Listing{
		ID:        id,
		Kind:      domain.KindTruck,
		Status:    domain.StatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		FromCity:  "Ташкент",
		ToCity:    "Самарканд",
		Truck:     &domain.TruckDetails{TruckType: domain.TruckTent, Capacity: 20},
	}
}

func TestMergeRemoteWins(t *testing.T) {
	local := listing("x", 100)
	local.FromCity = "Черновик"
	remote := listing("x", 100)
	remote.FromCity = "Ташкент"

	merged := MergeAndDeduplicate([]domain.Listing{remote}, []domain.Listing{local})
	if len(merged) != 1 {
		t.Fatalf("ожидали ровно одну запись, получили %d", len(merged))
	}
	if merged[0].FromCity != "Ташкент" {
		t.Fatalf("ожидали победу удалённой версии, получили %q", merged[0].FromCity)
	}
	if merged[0].Origin != domain.OriginRemote {
		t.Fatalf("ожидали origin=remote, получили %s", merged[0].Origin)
	}
}

func TestMergeIdempotent(t *testing.T) {
	remote := []domain.Listing{listing("a", 3), listing("b", 2)}
	local := []domain.Listing{listing("c", 1)}

	once := MergeAndDeduplicate(remote, local)
	twice := MergeAndDeduplicate(once, nil)
	if len(twice) != len(once) {
		t.Fatalf("повторное слияние изменило размер: %d != %d", len(twice), len(once))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatalf("повторное слияние изменило порядок на позиции %d", i)
		}
	}
}

func TestMergeCanonicalOrder(t *testing.T) {
	merged := MergeAndDeduplicate([]domain.Listing{
		listing("b", 10), listing("a", 10), listing("c", 20),
	}, nil)
	got := []string{merged[0].ID, merged[1].ID, merged[2].ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ожидали порядок %v, получили %v", want, got)
		}
	}
}

func TestSnapshotPreservesOptimistic(t *testing.T) {
	s := NewStore()
	s.AddOptimistic(listing("local-1", 50))

	s.ApplyRemoteSnapshot([]domain.Listing{listing("r1", 100)})
	if _, ok := s.Get("local-1"); !ok {
		t.Fatalf("оптимистичная запись потеряна при снапшоте")
	}

	// ID round-trip'нулся: снапшот вытесняет заглушку.
	confirmed := listing("local-1", 50)
	confirmed.Comment = "из снапшота"
	s.ApplyRemoteSnapshot([]domain.Listing{confirmed})
	got, ok := s.Get("local-1")
	if !ok {
		t.Fatalf("запись пропала после подтверждения")
	}
	if got.Origin != domain.OriginRemote || got.Comment != "из снапшота" {
		t.Fatalf("ожидали авторитетную версию из снапшота, получили %+v", got)
	}
	if s.Len() != 1 {
		t.Fatalf("ожидали 1 запись, получили %d", s.Len())
	}
}

func TestFeedErrorKeepsLastSnapshot(t *testing.T) {
	s := NewStore()
	s.ApplyRemoteSnapshot([]domain.Listing{listing("r1", 100), listing("r2", 90)})
	s.AddOptimistic(listing("local-1", 80))

	s.ApplyFeedError(errors.New("сеть недоступна"))
	if s.Len() != 3 {
		t.Fatalf("сбой ленты не должен очищать набор, осталось %d", s.Len())
	}
	if s.FeedError() == nil {
		t.Fatalf("ожидали зафиксированный сбой ленты")
	}

	s.ApplyRemoteSnapshot([]domain.Listing{listing("r1", 100)})
	if s.FeedError() != nil {
		t.Fatalf("удачный снапшот должен сбрасывать сбой")
	}
}

func TestConfirmOptimisticReplacesID(t *testing.T) {
	s := NewStore()
	s.AddOptimistic(listing("tmp", 10))

	confirmed := listing("srv-9", 10)
	s.ConfirmOptimistic("tmp", confirmed)

	if _, ok := s.Get("tmp"); ok {
		t.Fatalf("заглушка должна быть удалена")
	}
	got, ok := s.Get("srv-9")
	if !ok || got.Origin != domain.OriginRemote {
		t.Fatalf("ожидали подтверждённую запись srv-9, получили %+v", got)
	}
}

func TestDropOptimisticLeavesRemoteAlone(t *testing.T) {
	s := NewStore()
	s.ApplyRemoteSnapshot([]domain.Listing{listing("r1", 100)})
	s.DropOptimistic("r1")
	if _, ok := s.Get("r1"); !ok {
		t.Fatalf("DropOptimistic не должен трогать удалённые записи")
	}
}
