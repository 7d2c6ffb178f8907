package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
	"gruz-board/internal/usecase/board"
	"gruz-board/internal/usecase/lifecycle"
)

// memGateStore долговременный флаг в памяти. Переживает пересоздание
// сервиса, имитируя хранилище между перезапусками.
type memGateStore struct {
	unlocked map[string]bool
	failRead bool
}

func newMemGateStore() *memGateStore {
	return &memGateStore{unlocked: make(map[string]bool)}
}

func (s *memGateStore) IsUnlocked(_ context.Context, id string) (bool, error) {
	if s.failRead {
		return false, errors.New("хранилище недоступно")
	}
	return s.unlocked[id], nil
}

func (s *memGateStore) SetUnlocked(_ context.Context, id string) error {
	s.unlocked[id] = true
	return nil
}

func newTestGate(store domain.GateStore) *Service {
	return NewService(store, zerolog.Nop(), Options{SubscribeLink: "https://t.me/gruzfura"})
}

func user(id string) domain.Identity {
	return domain.Identity{ID: id, Name: "Тест"}
}

func drainCountdown(t *testing.T, s *Service, actorID string) {
	t.Helper()
	for i := 0; i < DefaultCountdown; i++ {
		s.Tick(actorID, -1)
	}
	if st := s.StatusFor(context.Background(), actorID); st.State != StateConfirmable {
		t.Fatalf("после %d тиков ожидали confirmable, получили %s", DefaultCountdown, st.State)
	}
}

func TestRequestCreateAnonymous(t *testing.T) {
	s := newTestGate(newMemGateStore())
	_, err := s.RequestCreate(context.Background(), domain.Anonymous(), domain.KindTruck)
	if !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("ожидали ErrAuthRequired, получили %v", err)
	}
}

func TestFullFlow(t *testing.T) {
	ctx := context.Background()
	s := newTestGate(newMemGateStore())

	d, err := s.RequestCreate(ctx, user("u1"), domain.KindCargo)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if d.Allowed || d.Status.State != StateAwaitingAction {
		t.Fatalf("ожидали awaiting_action, получили %+v", d)
	}
	if d.Status.SubscribeLink == "" {
		t.Fatalf("ссылка на подписку должна отдаваться сразу")
	}

	st, err := s.TriggerExternalAction("u1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if st.State != StateVerifying || st.Countdown != DefaultCountdown {
		t.Fatalf("ожидали verifying с отсчётом %d, получили %+v", DefaultCountdown, st)
	}

	drainCountdown(t, s, "u1")

	kind, err := s.Confirm(ctx, "u1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if kind != domain.KindCargo {
		t.Fatalf("подтверждение должно вернуть отложенное намерение, получили %s", kind)
	}
	if st := s.StatusFor(ctx, "u1"); st.State != StateUnlocked {
		t.Fatalf("после подтверждения ожидали unlocked, получили %s", st.State)
	}
}

func TestConfirmTooEarly(t *testing.T) {
	ctx := context.Background()
	s := newTestGate(newMemGateStore())

	if _, err := s.Confirm(ctx, "u1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("без сессии ожидали ErrNoSession, получили %v", err)
	}

	s.RequestCreate(ctx, user("u1"), domain.KindTruck)
	if _, err := s.Confirm(ctx, "u1"); !errors.Is(err, ErrNotConfirmable) {
		t.Fatalf("до отсчёта ожидали ErrNotConfirmable, получили %v", err)
	}

	s.TriggerExternalAction("u1")
	s.Tick("u1", -1)
	if _, err := s.Confirm(ctx, "u1"); !errors.Is(err, ErrNotConfirmable) {
		t.Fatalf("до конца отсчёта ожидали ErrNotConfirmable, получили %v", err)
	}
}

func TestAbandonResets(t *testing.T) {
	ctx := context.Background()
	s := newTestGate(newMemGateStore())

	s.RequestCreate(ctx, user("u1"), domain.KindTruck)
	s.TriggerExternalAction("u1")
	drainCountdown(t, s, "u1")

	s.Abandon("u1")
	if st := s.StatusFor(ctx, "u1"); st.State != StateLocked {
		t.Fatalf("после отказа ожидали locked, получили %s", st.State)
	}
	if _, err := s.Confirm(ctx, "u1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("после отказа подтверждение невозможно, получили %v", err)
	}
	// Повторный отказ ничего не ломает.
	s.Abandon("u1")
}

func TestRestartInvalidatesOldTicks(t *testing.T) {
	ctx := context.Background()
	s := newTestGate(newMemGateStore())

	s.RequestCreate(ctx, user("u1"), domain.KindTruck)
	s.TriggerExternalAction("u1")
	const oldSeq = 1

	// Рестарт отсчёта поднимает поколение, старые тики игнорируются.
	s.TriggerExternalAction("u1")
	if s.Tick("u1", oldSeq) {
		t.Fatalf("тик устаревшего поколения должен игнорироваться")
	}
	if got := s.StatusFor(ctx, "u1"); got.Countdown != DefaultCountdown {
		t.Fatalf("отсчёт не должен уменьшаться от устаревшего тика: %+v", got)
	}
}

func TestUnlockPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := newMemGateStore()

	s := newTestGate(store)
	s.RequestCreate(ctx, user("u1"), domain.KindTruck)
	s.TriggerExternalAction("u1")
	drainCountdown(t, s, "u1")
	if _, err := s.Confirm(ctx, "u1"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	// Новый экземпляр сервиса, то же хранилище: гейт пройден навсегда.
	s2 := newTestGate(store)
	d, err := s2.RequestCreate(ctx, user("u1"), domain.KindCargo)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("разблокированный аккаунт должен проходить без гейта")
	}

	// Другой аккаунт проходит поток с нуля.
	d, _ = s2.RequestCreate(ctx, user("u2"), domain.KindCargo)
	if d.Allowed {
		t.Fatalf("гейт действует на каждый аккаунт отдельно")
	}
}

func TestStoreFailureDegradesToLocked(t *testing.T) {
	ctx := context.Background()
	store := newMemGateStore()
	store.failRead = true
	s := newTestGate(store)

	d, err := s.RequestCreate(ctx, user("u1"), domain.KindTruck)
	if err != nil {
		t.Fatalf("сбой чтения флага не должен быть ошибкой: %v", err)
	}
	if d.Allowed {
		t.Fatalf("при сбое чтения аккаунт считается не прошедшим гейт")
	}
}

type e2eRemote struct{}

func (e2eRemote) CreateListing(_ context.Context, l domain.Listing) (string, error) {
	return "srv-" + l.ID, nil
}
func (e2eRemote) UpdateListing(context.Context, domain.Listing) error { return nil }
func (e2eRemote) DeleteListing(context.Context, string) error         { return nil }

// Сквозной сценарий: гейт отдаёт отложенное намерение, жизненный цикл
// создаёт по нему активное объявление со сроком по умолчанию.
func TestGateThenCreate(t *testing.T) {
	ctx := context.Background()
	actor := user("u1")

	g := newTestGate(newMemGateStore())
	g.RequestCreate(ctx, actor, domain.KindTruck)
	g.TriggerExternalAction(actor.ID)
	drainCountdown(t, g, actor.ID)

	kind, err := g.Confirm(ctx, actor.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	b := board.NewStore()
	lc := lifecycle.NewService(b, e2eRemote{}, nil, nil, zerolog.Nop(), 0)
	l, err := lc.Create(ctx, actor, lifecycle.CreateInput{
		Kind:     kind,
		FromCity: "Ташкент",
		ToCity:   "Андижан",
		Truck:    &domain.TruckDetails{TruckType: domain.TruckRef, Capacity: 10},
	})
	if err != nil {
		t.Fatalf("создание после гейта должно проходить: %v", err)
	}
	if l.Kind != domain.KindTruck || l.Status != domain.StatusActive {
		t.Fatalf("неожиданная запись: %+v", l)
	}
	if l.ExpiresAt != l.CreatedAt+259_200_000 {
		t.Fatalf("срок по умолчанию должен быть createdAt+72ч: %+v", l)
	}
	if len(b.Active(l.CreatedAt)) != 1 {
		t.Fatalf("созданная запись должна быть видна в активной выборке")
	}
}
