// Package board хранит канонический набор объявлений: слитую и
// дедуплицированную картину из снапшотов удалённой ленты и локальных
// оптимистичных записей.
package board

import (
	"sort"
	"sync"

	"gruz-board/internal/domain"
)

// Store единственный разделяемый изменяемый ресурс ядра. Все мутации
// (снапшот, оптимистичные вставки, правки жизненного цикла) применяются
// атомарно относительно читателей.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]domain.Listing
	lastErr error
}

// NewStore создаёт пустой набор.
func NewStore() *Store {
	return &Store{byID: make(map[string]domain.Listing)}
}

// MergeAndDeduplicate сливает удалённый снапшот с локальными записями.
// Ключ — ID; при совпадении побеждает удалённая запись (после round-trip
// она авторитетна). Результат отсортирован в каноническом порядке чтения:
// CreatedAt по убыванию, при равенстве ID по возрастанию.
func MergeAndDeduplicate(remote, local []domain.Listing) []domain.Listing {
	merged := make(map[string]domain.Listing, len(remote)+len(local))
	for _, l := range local {
		l.Origin = domain.OriginLocal
		merged[l.ID] = l
	}
	for _, l := range remote {
		l.Origin = domain.OriginRemote
		merged[l.ID] = l
	}
	out := make([]domain.Listing, 0, len(merged))
	for _, l := range merged {
		out = append(out, l)
	}
	sortCanonical(out)
	return out
}

func sortCanonical(items []domain.Listing) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt > items[j].CreatedAt
		}
		return items[i].ID < items[j].ID
	})
}

// ApplyRemoteSnapshot целиком заменяет удалённую часть набора.
// Оптимистичные записи, чей ID ещё не появился в снапшоте, сохраняются;
// совпавший ID означает, что запись round-trip'нулась и её вытесняет
// авторитетная версия.
func (s *Store) ApplyRemoteSnapshot(items []domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]domain.Listing, len(items)+len(s.byID))
	for _, l := range s.byID {
		if l.Origin == domain.OriginLocal {
			next[l.ID] = l
		}
	}
	for _, l := range items {
		l.Origin = domain.OriginRemote
		next[l.ID] = l
	}
	s.byID = next
	s.lastErr = nil
}

// ApplyFeedError фиксирует сбой ленты. Набор не очищается: продолжаем
// отдавать последний удачный снапшот плюс оптимистичные записи.
func (s *Store) ApplyFeedError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// FeedError возвращает последний сбой ленты, nil после удачного снапшота.
func (s *Store) FeedError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// AddOptimistic вставляет локальную запись-заглушку до подтверждения
// удалённым хранилищем.
func (s *Store) AddOptimistic(l domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.Origin = domain.OriginLocal
	s.byID[l.ID] = l
}

// ConfirmOptimistic заменяет заглушку подтверждённой записью
// (возможно, с назначенным хранилищем ID).
func (s *Store) ConfirmOptimistic(localID string, confirmed domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, localID)
	confirmed.Origin = domain.OriginRemote
	s.byID[confirmed.ID] = confirmed
}

// DropOptimistic убирает заглушку после окончательного отказа записи.
func (s *Store) DropOptimistic(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.byID[localID]; ok && l.Origin == domain.OriginLocal {
		delete(s.byID, localID)
	}
}

// Upsert кладёт запись в набор, сохраняя её происхождение.
func (s *Store) Upsert(l domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byID[l.ID]; ok && l.Origin == "" {
		l.Origin = prev.Origin
	}
	if l.Origin == "" {
		l.Origin = domain.OriginRemote
	}
	s.byID[l.ID] = l
}

// Remove удаляет запись локально.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// Get возвращает запись по ID.
func (s *Store) Get(id string) (domain.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.byID[id]
	return l, ok
}

// All возвращает весь набор в каноническом порядке чтения.
func (s *Store) All() []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Listing, 0, len(s.byID))
	for _, l := range s.byID {
		out = append(out, l)
	}
	sortCanonical(out)
	return out
}

// Active возвращает видимое подмножество на момент now (мс).
func (s *Store) Active(now int64) []domain.Listing {
	return ActiveListings(s.All(), now)
}

// Len текущий размер набора.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
