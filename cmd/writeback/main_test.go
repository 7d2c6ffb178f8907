package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
)

// memRemote хранилище в памяти: Update отвечает ErrNotFound, пока
// запись не создана.
type memRemote struct {
	rows    map[string]domain.Listing
	updated []string
}

func newMemRemote() *memRemote {
	return &memRemote{rows: make(map[string]domain.Listing)}
}

func (r *memRemote) CreateListing(_ context.Context, l domain.Listing) (string, error) {
	r.rows[l.ID] = l
	return l.ID, nil
}

func (r *memRemote) UpdateListing(_ context.Context, l domain.Listing) error {
	if _, ok := r.rows[l.ID]; !ok {
		return domain.ErrNotFound
	}
	r.rows[l.ID] = l
	r.updated = append(r.updated, l.ID)
	return nil
}

func (r *memRemote) DeleteListing(_ context.Context, id string) error {
	delete(r.rows, id)
	return nil
}

type stubQueue struct {
	jobs []domain.WriteJob
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.WriteJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Pop(ctx context.Context) (domain.WriteJob, error) {
	if len(q.jobs) == 0 {
		return domain.WriteJob{}, ctx.Err()
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func listing(id string) domain.Listing {
	return domain.Listing{
		ID: id, Kind: domain.KindTruck, Status: domain.StatusActive,
		CreatedAt: 1, UpdatedAt: 1, FromCity: "А", ToCity: "Б",
		Truck: &domain.TruckDetails{TruckType: domain.TruckTent, Capacity: 20},
	}
}

// Правка записи, чей отложенный create ещё не дошёл до хранилища,
// должна вернуться в очередь, а не пропасть.
func TestUpdateBeforeCreateIsRetried(t *testing.T) {
	ctx := context.Background()
	store := newMemRemote()
	q := &stubQueue{}

	l := listing("l1")
	l.Comment = "после правки"

	process(ctx, zerolog.Nop(), q, store, domain.WriteJob{Op: domain.WriteUpdate, Listing: &l})
	if len(q.jobs) != 1 || q.jobs[0].Op != domain.WriteUpdate || q.jobs[0].Attempt != 1 {
		t.Fatalf("ожидали возврат задачи update с attempt=1, получили %+v", q.jobs)
	}
	if len(store.updated) != 0 {
		t.Fatalf("правка не должна применяться до create")
	}

	// Отложенный create догнал хранилище — повтор правки проходит.
	orig := listing("l1")
	process(ctx, zerolog.Nop(), q, store, domain.WriteJob{Op: domain.WriteCreate, Listing: &orig})
	retry := q.jobs[0]
	q.jobs = q.jobs[1:]
	process(ctx, zerolog.Nop(), q, store, retry)

	if len(store.updated) != 1 {
		t.Fatalf("повтор правки должен примениться")
	}
	if got := store.rows["l1"]; got.Comment != "после правки" {
		t.Fatalf("правка потеряна: %+v", got)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("очередь должна опустеть, осталось %+v", q.jobs)
	}
}

func TestUpdateDroppedAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := newMemRemote()
	q := &stubQueue{}

	l := listing("gone")
	process(ctx, zerolog.Nop(), q, store, domain.WriteJob{
		Op: domain.WriteUpdate, Listing: &l, Attempt: maxAttempts - 1,
	})
	if len(q.jobs) != 0 {
		t.Fatalf("исчерпанная задача должна отбрасываться, получили %+v", q.jobs)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemRemote()
	q := &stubQueue{}

	process(ctx, zerolog.Nop(), q, store, domain.WriteJob{Op: domain.WriteDelete, ListingID: "absent"})
	if len(q.jobs) != 0 {
		t.Fatalf("удаление отсутствующей записи не должно повторяться: %+v", q.jobs)
	}
}
