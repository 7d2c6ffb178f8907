// Package history ведёт список недавно просмотренных объявлений по
// аккаунту. Список ограничен и хранится отдельно от самих объявлений:
// на выдаче идентификаторы накладываются на текущий набор, пропавшие
// записи молча выпадают.
package history

import (
	"context"

	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
	"gruz-board/internal/usecase/board"
)

// MaxRecent максимум запоминаемых просмотров на аккаунт.
const MaxRecent = 20

// Service история просмотров.
type Service struct {
	store domain.HistoryStore
	board *board.Store
	log   zerolog.Logger
}

// NewService создаёт сервис истории.
func NewService(store domain.HistoryStore, b *board.Store, logger zerolog.Logger) *Service {
	return &Service{store: store, board: b, log: logger}
}

// Record запоминает просмотр. Анонимные просмотры не пишутся, сбой
// хранилища не мешает просмотру и только логируется.
func (s *Service) Record(ctx context.Context, actor domain.Identity, listingID string) {
	if actor.IsAnonymous || actor.ID == "" || listingID == "" {
		return
	}
	if err := s.store.PushViewed(ctx, actor.ID, listingID, MaxRecent); err != nil {
		s.log.Warn().Err(err).Str("listing_id", listingID).Msg("history: просмотр не записан")
	}
}

// Recent отдаёт недавно просмотренные объявления в порядке от нового к
// старому, только те, что ещё существуют в наборе.
func (s *Service) Recent(ctx context.Context, actor domain.Identity) ([]domain.Listing, error) {
	if actor.IsAnonymous || actor.ID == "" {
		return nil, domain.ErrAuthRequired
	}
	ids, err := s.store.RecentViewed(ctx, actor.ID, MaxRecent)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.board.Get(id); ok {
			out = append(out, l)
		}
	}
	return out, nil
}
