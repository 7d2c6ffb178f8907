package domain

import "context"

// FeedQuery параметры подписки на ленту удалённого хранилища.
// Лента отдаёт полный снапшот последних записей, не дельты.
type FeedQuery struct {
	Limit int
}

// Subscription живая подписка на ленту. Unsubscribe идемпотентен:
// после первого вызова коллбэки больше не вызываются.
type Subscription interface {
	Unsubscribe()
}

// RemoteFeed поставляет упорядоченные снапшоты объявлений.
// onError сигнализирует о временном сбое; подписка при этом не
// разрывается и следующий удачный опрос снова приведёт к onSnapshot.
type RemoteFeed interface {
	Subscribe(ctx context.Context, q FeedQuery, onSnapshot func([]Listing), onError func(error)) (Subscription, error)
}

// RemoteStore асинхронные записи в удалённое хранилище документов.
type RemoteStore interface {
	// CreateListing сохраняет документ. Пустой ID заменяется
	// назначенным хранилищем; итоговый ID возвращается.
	CreateListing(ctx context.Context, l Listing) (string, error)
	UpdateListing(ctx context.Context, l Listing) error
	DeleteListing(ctx context.Context, id string) error
}

// GateStore долговременный флаг «подписка подтверждена» по аккаунту.
type GateStore interface {
	IsUnlocked(ctx context.Context, identityID string) (bool, error)
	SetUnlocked(ctx context.Context, identityID string) error
}

// HistoryStore список недавно просмотренных объявлений по аккаунту,
// свежие в начале, не длиннее max.
type HistoryStore interface {
	PushViewed(ctx context.Context, identityID, listingID string, max int) error
	RecentViewed(ctx context.Context, identityID string, max int) ([]string, error)
}

// Assistant необязательный ИИ-помощник. Любая его ошибка деградирует
// до «нет подсказки» на стороне вызывающего и никогда не блокирует ядро.
type Assistant interface {
	SuggestCities(ctx context.Context, partial string) ([]string, error)
	AnalyzeRoute(ctx context.Context, q RouteQuery) (RouteAdvice, error)
}

// Announcer дублирует свежие объявления во внешний канал (best effort).
type Announcer interface {
	AnnounceListing(ctx context.Context, l Listing) error
	SubscribeLink() string
}

// WriteQueue очередь отложенных записей в удалённое хранилище.
type WriteQueue interface {
	Enqueue(ctx context.Context, job WriteJob) error
	Pop(ctx context.Context) (WriteJob, error)
}
