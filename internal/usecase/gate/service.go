// Package gate пропускает действие «создать объявление» через разовую
// внешнюю подписку с таймером самоподтверждения. Проверка честная
// (honor system): внешний факт подписки не верифицируется, см. DESIGN.md.
package gate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
	"gruz-board/internal/infra/metrics"
)

// State стадия прохождения гейта.
type State string

const (
	StateLocked         State = "locked"
	StateAwaitingAction State = "awaiting_action"
	StateVerifying      State = "verifying"
	StateConfirmable    State = "confirmable"
	StateUnlocked       State = "unlocked"
)

// DefaultCountdown длительность окна самоподтверждения в секундах.
const DefaultCountdown = 8

var (
	// ErrNoSession поток гейта не начат или уже сброшен.
	ErrNoSession = errors.New("гейт не активен, начните заново")
	// ErrNotConfirmable подтверждение вне состояния Confirmable.
	ErrNotConfirmable = errors.New("подтверждение ещё недоступно")
)

// session транзиентное состояние потока по аккаунту. Живёт только в
// памяти: любой обрыв до Unlocked возвращает аккаунт в Locked.
type session struct {
	state     State
	countdown int
	pending   domain.ListingKind
	timerSeq  int // инвалидация тикера после отмены
}

// Service гейт подписки. Долговременен только флаг Unlocked в store;
// всё остальное сбрасывается при отказе от потока.
type Service struct {
	mu        sync.Mutex
	store     domain.GateStore
	sessions  map[string]*session
	countdown int
	tick      time.Duration // 0 — тикать вручную (тесты)
	link      string
	log       zerolog.Logger
}

// Options настройки гейта.
type Options struct {
	// CountdownSeconds окно самоподтверждения; 0 — DefaultCountdown.
	CountdownSeconds int
	// TickInterval период тика; 0 отключает встроенный таймер.
	TickInterval time.Duration
	// SubscribeLink внешняя ссылка, которую должен открыть пользователь.
	SubscribeLink string
}

// NewService создаёт гейт.
func NewService(store domain.GateStore, logger zerolog.Logger, opts Options) *Service {
	if opts.CountdownSeconds <= 0 {
		opts.CountdownSeconds = DefaultCountdown
	}
	return &Service{
		store:     store,
		sessions:  make(map[string]*session),
		countdown: opts.CountdownSeconds,
		tick:      opts.TickInterval,
		link:      opts.SubscribeLink,
		log:       logger,
	}
}

// Status снимок состояния гейта для аккаунта.
type Status struct {
	State         State              `json:"state"`
	Countdown     int                `json:"countdown"`
	CanConfirm    bool               `json:"canConfirm"`
	Pending       domain.ListingKind `json:"pending,omitempty"`
	SubscribeLink string             `json:"subscribeLink,omitempty"`
}

// Decision ответ на запрос создания.
type Decision struct {
	// Allowed гейт уже пройден, намерение можно выполнять сразу.
	Allowed bool   `json:"allowed"`
	Status  Status `json:"status"`
}

// RequestCreate начинает (или обходит) поток гейта для намерения
// создать объявление вида kind. Однажды разблокированный аккаунт
// проходит без гейта — флаг читается из долговременного хранилища.
func (s *Service) RequestCreate(ctx context.Context, actor domain.Identity, kind domain.ListingKind) (Decision, error) {
	if actor.IsAnonymous || actor.ID == "" {
		return Decision{}, domain.ErrAuthRequired
	}

	unlocked, err := s.store.IsUnlocked(ctx, actor.ID)
	if err != nil {
		// Сбой хранилища не блокирует: считаем аккаунт ещё не прошедшим.
		s.log.Warn().Err(err).Msg("gate: флаг подписки недоступен")
		unlocked = false
	}
	if unlocked {
		return Decision{Allowed: true, Status: Status{State: StateUnlocked}}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &session{state: StateAwaitingAction, pending: kind}
	if prev, ok := s.sessions[actor.ID]; ok {
		sess.timerSeq = prev.timerSeq + 1 // гасим возможный старый тикер
	}
	s.sessions[actor.ID] = sess
	return Decision{Status: s.statusLocked(sess)}, nil
}

// TriggerExternalAction фиксирует, что пользователь ушёл выполнять
// внешнее действие, и запускает обратный отсчёт. Повторный вызов в
// Verifying перезапускает отсчёт заново.
func (s *Service) TriggerExternalAction(actorID string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[actorID]
	if !ok {
		return Status{State: StateLocked}, ErrNoSession
	}
	if sess.state != StateAwaitingAction && sess.state != StateVerifying {
		return s.statusLocked(sess), ErrNotConfirmable
	}
	sess.state = StateVerifying
	sess.countdown = s.countdown
	sess.timerSeq++
	if s.tick > 0 {
		go s.runTicker(actorID, sess.timerSeq)
	}
	return s.statusLocked(sess), nil
}

// runTicker тикает раз в секунду, пока сессия жива и seq актуален.
// Отмена (Abandon, рестарт, Confirm) поднимает seq, и горутина молча
// выходит — после отмены ни один коллбэк не меняет состояние.
func (s *Service) runTicker(actorID string, seq int) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for range ticker.C {
		if !s.Tick(actorID, seq) {
			return
		}
	}
}

// Tick продвигает отсчёт на один шаг. Возвращает false, когда тикать
// больше нечего. seq < 0 пропускает проверку поколения (ручной тик).
func (s *Service) Tick(actorID string, seq int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[actorID]
	if !ok || (seq >= 0 && sess.timerSeq != seq) || sess.state != StateVerifying {
		return false
	}
	sess.countdown--
	if sess.countdown <= 0 {
		sess.countdown = 0
		sess.state = StateConfirmable
		return false
	}
	return true
}

// Confirm завершает поток: валиден только в Confirmable. Флаг
// разблокировки сохраняется долговременно, отложенное намерение
// возвращается вызывающему.
func (s *Service) Confirm(ctx context.Context, actorID string) (domain.ListingKind, error) {
	s.mu.Lock()
	sess, ok := s.sessions[actorID]
	if !ok {
		s.mu.Unlock()
		return "", ErrNoSession
	}
	if sess.state != StateConfirmable {
		s.mu.Unlock()
		return "", ErrNotConfirmable
	}
	pending := sess.pending
	sess.timerSeq++
	delete(s.sessions, actorID)
	s.mu.Unlock()

	if err := s.store.SetUnlocked(ctx, actorID); err != nil {
		// Поток уже пройден честно; не заставляем проходить заново.
		s.log.Error().Err(err).Msg("gate: флаг подписки не сохранён")
	}
	metrics.GateUnlocks.Inc()
	return pending, nil
}

// Abandon сбрасывает поток в Locked и отменяет отсчёт. Идемпотентен.
func (s *Service) Abandon(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[actorID]; ok {
		sess.timerSeq++
		delete(s.sessions, actorID)
	}
}

// StatusFor текущее состояние гейта для аккаунта.
func (s *Service) StatusFor(ctx context.Context, actorID string) Status {
	if unlocked, err := s.store.IsUnlocked(ctx, actorID); err == nil && unlocked {
		return Status{State: StateUnlocked}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[actorID]
	if !ok {
		return Status{State: StateLocked, SubscribeLink: s.link}
	}
	return s.statusLocked(sess)
}

// statusLocked снимок сессии; вызывать только под mu.
func (s *Service) statusLocked(sess *session) Status {
	return Status{
		State:         sess.state,
		Countdown:     sess.countdown,
		CanConfirm:    sess.state == StateConfirmable,
		Pending:       sess.pending,
		SubscribeLink: s.link,
	}
}
