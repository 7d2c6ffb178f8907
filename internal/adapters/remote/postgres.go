// Package remote реализует удалённое хранилище объявлений и ленту
// срезов поверх Postgres. Объявление хранится документом: индексируемые
// поля вынесены в колонки, остальное лежит в jsonb как есть, поэтому
// разреженные записи не обрастают пустыми значениями.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
	"gruz-board/internal/infra/metrics"
)

// Store хранилище объявлений в Postgres.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewStore создаёт хранилище.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{pool: pool, log: logger}
}

// EnsureSchema создаёт таблицу объявлений, если её нет.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			creator_id TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			doc        JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS listings_created_at_idx ON listings (created_at DESC, id);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateListing вставляет объявление и возвращает его идентификатор.
// Переданный идентификатор сохраняется: повтор отложенной записи с тем
// же id не плодит дублей.
func (s *Store) CreateListing(ctx context.Context, l domain.Listing) (string, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	doc, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("marshal listing: %w", err)
	}
	start := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO listings (id, kind, creator_id, status, created_at, updated_at, expires_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at, doc = EXCLUDED.doc
	`, l.ID, string(l.Kind), l.CreatorID, string(l.Status), l.CreatedAt, l.UpdatedAt, l.ExpiresAt, doc)
	metrics.ObserveNetworkRequest("postgres", "create_listing", "listings", start, err)
	if err != nil {
		return "", fmt.Errorf("insert listing: %w", err)
	}
	return l.ID, nil
}

// UpdateListing перезаписывает объявление целиком.
func (s *Store) UpdateListing(ctx context.Context, l domain.Listing) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET
			kind = $2, creator_id = $3, status = $4,
			created_at = $5, updated_at = $6, expires_at = $7, doc = $8
		WHERE id = $1
	`, l.ID, string(l.Kind), l.CreatorID, string(l.Status), l.CreatedAt, l.UpdatedAt, l.ExpiresAt, doc)
	metrics.ObserveNetworkRequest("postgres", "update_listing", "listings", start, err)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteListing удаляет объявление. Отсутствующая запись не ошибка:
// удаление идемпотентно.
func (s *Store) DeleteListing(ctx context.Context, id string) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "delete_listing", "listings", start, err)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

// Snapshot читает срез объявлений в каноническом порядке.
func (s *Store) Snapshot(ctx context.Context, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT doc FROM listings ORDER BY created_at DESC, id ASC LIMIT $1
	`, limit)
	metrics.ObserveNetworkRequest("postgres", "snapshot", "listings", start, err)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		var l domain.Listing
		if err := json.Unmarshal(doc, &l); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		l.Origin = domain.OriginRemote
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, nil
}

// Feed лента срезов на опросе хранилища. Пока настоящих push-уведомлений
// нет, срез перечитывается с фиксированным интервалом.
type Feed struct {
	store    *Store
	interval time.Duration
	log      zerolog.Logger
}

// NewFeed создаёт ленту.
func NewFeed(store *Store, interval time.Duration, logger zerolog.Logger) *Feed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Feed{store: store, interval: interval, log: logger}
}

type subscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) Unsubscribe() { s.once.Do(s.cancel) }

// Subscribe немедленно отдаёт первый срез и дальше шлёт свежие по
// интервалу опроса. После Unsubscribe коллбэки не вызываются.
func (f *Feed) Subscribe(ctx context.Context, q domain.FeedQuery, onSnapshot func([]domain.Listing), onError func(error)) (domain.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}

	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		f.poll(subCtx, q, onSnapshot, onError)
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				f.poll(subCtx, q, onSnapshot, onError)
			}
		}
	}()
	return sub, nil
}

func (f *Feed) poll(ctx context.Context, q domain.FeedQuery, onSnapshot func([]domain.Listing), onError func(error)) {
	items, err := f.store.Snapshot(ctx, q.Limit)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		metrics.SnapshotErrors.Inc()
		f.log.Warn().Err(err).Msg("feed: срез не получен")
		if onError != nil {
			onError(errors.Join(domain.ErrRemoteUnavailable, err))
		}
		return
	}
	metrics.SnapshotApplied.Inc()
	metrics.SnapshotSize.Set(float64(len(items)))
	onSnapshot(items)
}
