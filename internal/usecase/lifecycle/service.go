// Package lifecycle единственная точка изменения объявлений: проверяет
// права, валидирует поля, ведёт таблицу переходов статуса и штампует
// временные метки.
package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
	"gruz-board/internal/infra/metrics"
	"gruz-board/internal/usecase/board"
)

// DefaultTTL срок показа объявления по умолчанию.
const DefaultTTL = 72 * time.Hour

// Service контроллер жизненного цикла объявлений.
type Service struct {
	board     *board.Store
	remote    domain.RemoteStore
	queue     domain.WriteQueue  // nil — отложенные записи недоступны
	announcer domain.Announcer   // nil — без дублирования в канал
	log       zerolog.Logger
	ttl       time.Duration
	now       func() int64 // миллисекунды Unix
}

// NewService создаёт контроллер.
func NewService(b *board.Store, remote domain.RemoteStore, queue domain.WriteQueue, announcer domain.Announcer, logger zerolog.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		board:     b,
		remote:    remote,
		queue:     queue,
		announcer: announcer,
		log:       logger,
		ttl:       ttl,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// CreateInput поля нового объявления. Пустые необязательные строки
// отбрасываются до записи: отсутствующее поле не пишется как null.
type CreateInput struct {
	Kind domain.ListingKind `json:"kind"`

	ContactName    string `json:"contactName"`
	ContactPhone   string `json:"contactPhone"`
	TelegramHandle string `json:"telegramHandle"`

	FromCity string `json:"fromCity"`
	ToCity   string `json:"toCity"`
	Date     string `json:"date"`
	Urgent   bool   `json:"urgent"`
	Comment  string `json:"comment"`

	// ExpiresAt переопределяет срок показа; 0 — now + TTL.
	ExpiresAt int64 `json:"expiresAt"`

	Truck *domain.TruckDetails `json:"truck"`
	Cargo *domain.CargoDetails `json:"cargo"`
}

// Create валидирует, штампует и сохраняет новое объявление. Сначала
// запись попадает в локальный набор оптимистично, затем уходит в
// удалённое хранилище; при его сбое запись откладывается в очередь.
func (s *Service) Create(ctx context.Context, actor domain.Identity, in CreateInput) (domain.Listing, error) {
	if actor.IsAnonymous || actor.ID == "" {
		return domain.Listing{}, domain.ErrAuthRequired
	}
	in = sanitize(in)
	if err := validate(in); err != nil {
		return domain.Listing{}, err
	}

	now := s.now()
	expires := in.ExpiresAt
	if expires == 0 {
		expires = now + s.ttl.Milliseconds()
	}
	l := domain.Listing{
		ID:             uuid.NewString(),
		Kind:           in.Kind,
		CreatorID:      actor.ID,
		Status:         domain.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      expires,
		ContactName:    in.ContactName,
		ContactPhone:   in.ContactPhone,
		TelegramHandle: in.TelegramHandle,
		FromCity:       in.FromCity,
		ToCity:         in.ToCity,
		Date:           in.Date,
		Urgent:         in.Urgent,
		Comment:        in.Comment,
		Truck:          in.Truck,
		Cargo:          in.Cargo,
		Origin:         domain.OriginLocal,
	}

	s.board.AddOptimistic(l)

	id, err := s.remote.CreateListing(ctx, l)
	if err != nil {
		s.log.Warn().Err(err).Str("listing_id", l.ID).Msg("lifecycle: запись отложена")
		if qErr := s.deferWrite(ctx, domain.WriteJob{Op: domain.WriteCreate, Listing: &l}); qErr != nil {
			s.board.DropOptimistic(l.ID)
			return domain.Listing{}, qErr
		}
		metrics.ListingsCreated.Inc()
		return l, nil
	}

	confirmed := l
	confirmed.ID = id
	confirmed.Origin = domain.OriginRemote
	s.board.ConfirmOptimistic(l.ID, confirmed)
	metrics.ListingsCreated.Inc()
	s.announce(confirmed)
	return confirmed, nil
}

// EditInput разреженная правка: nil-поле означает «не менять».
type EditInput struct {
	ContactName    *string `json:"contactName"`
	ContactPhone   *string `json:"contactPhone"`
	TelegramHandle *string `json:"telegramHandle"`

	FromCity *string `json:"fromCity"`
	ToCity   *string `json:"toCity"`
	Date     *string `json:"date"`
	Urgent   *bool   `json:"urgent"`
	Comment  *string `json:"comment"`

	ExpiresAt *int64 `json:"expiresAt"`

	Truck *domain.TruckDetails `json:"truck"`
	Cargo *domain.CargoDetails `json:"cargo"`
}

// Edit изменяет поля объявления владельца. ID, Kind, CreatedAt и статус
// не трогаются, UpdatedAt штампуется заново.
func (s *Service) Edit(ctx context.Context, actor domain.Identity, id string, patch EditInput) (domain.Listing, error) {
	l, err := s.owned(actor, id)
	if err != nil {
		return domain.Listing{}, err
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&l.ContactName, patch.ContactName)
	applyString(&l.ContactPhone, patch.ContactPhone)
	applyString(&l.TelegramHandle, patch.TelegramHandle)
	applyString(&l.FromCity, patch.FromCity)
	applyString(&l.ToCity, patch.ToCity)
	applyString(&l.Date, patch.Date)
	applyString(&l.Comment, patch.Comment)
	if patch.Urgent != nil {
		l.Urgent = *patch.Urgent
	}
	if patch.ExpiresAt != nil {
		l.ExpiresAt = *patch.ExpiresAt
	}
	if patch.Truck != nil && l.Kind == domain.KindTruck {
		l.Truck = patch.Truck
	}
	if patch.Cargo != nil && l.Kind == domain.KindCargo {
		l.Cargo = patch.Cargo
	}

	if err := validateListing(l); err != nil {
		return domain.Listing{}, err
	}
	l.UpdatedAt = s.now()

	s.board.Upsert(l)
	s.pushRemoteUpdate(ctx, l)
	return l, nil
}

// ChangeStatus выполняет переход по таблице статусов.
func (s *Service) ChangeStatus(ctx context.Context, actor domain.Identity, id string, to domain.ListingStatus) (domain.Listing, error) {
	l, err := s.owned(actor, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if !CanTransition(l.Status, to) {
		return domain.Listing{}, &domain.InvalidTransitionError{From: l.Status, To: to}
	}
	l.Status = to
	l.UpdatedAt = s.now()

	s.board.Upsert(l)
	s.pushRemoteUpdate(ctx, l)
	metrics.StatusChanges.WithLabelValues(string(to)).Inc()
	return l, nil
}

// Delete убирает объявление владельца из локального набора и просит
// удалить его удалённо. Удаление оптимистично: сбой хранилища не
// возвращает запись, воркер доудалит её позже.
func (s *Service) Delete(ctx context.Context, actor domain.Identity, id string) error {
	l, err := s.owned(actor, id)
	if err != nil {
		return err
	}
	s.board.Remove(l.ID)
	metrics.ListingsDeleted.Inc()

	if err := s.remote.DeleteListing(ctx, l.ID); err != nil {
		s.log.Warn().Err(err).Str("listing_id", l.ID).Msg("lifecycle: удаление отложено")
		return s.deferWrite(ctx, domain.WriteJob{Op: domain.WriteDelete, ListingID: l.ID})
	}
	return nil
}

func (s *Service) owned(actor domain.Identity, id string) (domain.Listing, error) {
	if actor.IsAnonymous || actor.ID == "" {
		return domain.Listing{}, domain.ErrAuthRequired
	}
	l, ok := s.board.Get(id)
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	if !l.OwnedBy(actor.ID) {
		return domain.Listing{}, domain.ErrForbidden
	}
	return l, nil
}

func (s *Service) pushRemoteUpdate(ctx context.Context, l domain.Listing) {
	if err := s.remote.UpdateListing(ctx, l); err != nil {
		s.log.Warn().Err(err).Str("listing_id", l.ID).Msg("lifecycle: обновление отложено")
		ll := l
		_ = s.deferWrite(ctx, domain.WriteJob{Op: domain.WriteUpdate, Listing: &ll})
	}
}

func (s *Service) deferWrite(ctx context.Context, job domain.WriteJob) error {
	if s.queue == nil {
		return domain.ErrRemoteUnavailable
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.log.Error().Err(err).Str("op", string(job.Op)).Msg("lifecycle: очередь записи недоступна")
		return domain.ErrRemoteUnavailable
	}
	metrics.WritebackEnqueued.WithLabelValues(string(job.Op)).Inc()
	return nil
}

func (s *Service) announce(l domain.Listing) {
	if s.announcer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.announcer.AnnounceListing(ctx, l); err != nil {
			s.log.Debug().Err(err).Str("listing_id", l.ID).Msg("lifecycle: анонс не доставлен")
		}
	}()
}

func sanitize(in CreateInput) CreateInput {
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.ContactPhone = strings.TrimSpace(in.ContactPhone)
	in.TelegramHandle = strings.TrimSpace(in.TelegramHandle)
	in.FromCity = strings.TrimSpace(in.FromCity)
	in.ToCity = strings.TrimSpace(in.ToCity)
	in.Date = strings.TrimSpace(in.Date)
	in.Comment = strings.TrimSpace(in.Comment)

	// Вариантный блок чужого вида отбрасывается целиком.
	switch in.Kind {
	case domain.KindTruck:
		in.Cargo = nil
	case domain.KindCargo:
		in.Truck = nil
		if in.Cargo != nil {
			in.Cargo.CargoType = strings.TrimSpace(in.Cargo.CargoType)
			if in.Cargo.Currency == "" && in.Cargo.Price > 0 {
				in.Cargo.Currency = "USD"
			}
		}
	}
	return in
}

func validate(in CreateInput) error {
	l := domain.Listing{
		Kind:     in.Kind,
		FromCity: in.FromCity,
		ToCity:   in.ToCity,
		Truck:    in.Truck,
		Cargo:    in.Cargo,
	}
	return validateListing(l)
}

func validateListing(l domain.Listing) error {
	if l.FromCity == "" {
		return &domain.ValidationError{Field: "fromCity", Reason: "город отправления обязателен"}
	}
	if l.ToCity == "" {
		return &domain.ValidationError{Field: "toCity", Reason: "город назначения обязателен"}
	}
	switch l.Kind {
	case domain.KindTruck:
		if l.Truck == nil {
			return &domain.ValidationError{Field: "truck", Reason: "нет данных о фуре"}
		}
		if l.Truck.TruckType == "" {
			return &domain.ValidationError{Field: "truckType", Reason: "тип кузова обязателен"}
		}
		if l.Truck.Capacity <= 0 {
			return &domain.ValidationError{Field: "capacity", Reason: "грузоподъёмность должна быть положительной"}
		}
	case domain.KindCargo:
		if l.Cargo == nil {
			return &domain.ValidationError{Field: "cargo", Reason: "нет данных о грузе"}
		}
		if l.Cargo.Weight <= 0 {
			return &domain.ValidationError{Field: "weight", Reason: "вес должен быть положительным"}
		}
		if l.Cargo.Volume < 0 {
			return &domain.ValidationError{Field: "volume", Reason: "объём не может быть отрицательным"}
		}
		if l.Cargo.Price < 0 {
			return &domain.ValidationError{Field: "price", Reason: "цена не может быть отрицательной"}
		}
	default:
		return &domain.ValidationError{Field: "kind", Reason: "неизвестный вид объявления"}
	}
	return nil
}
