package domain

// ListingKind различает объявления о свободной фуре и о грузе.
type ListingKind string

const (
	// KindTruck свободная фура ищет груз.
	KindTruck ListingKind = "truck"
	// KindCargo груз ищет перевозчика.
	KindCargo ListingKind = "cargo"
)

// ListingStatus описывает стадию жизненного цикла объявления.
type ListingStatus string

const (
	StatusDraft      ListingStatus = "draft"
	StatusActive     ListingStatus = "active"
	StatusInProgress ListingStatus = "in_progress"
	StatusClosed     ListingStatus = "closed"
	StatusCancelled  ListingStatus = "cancelled"
)

// Origin показывает, откуда запись попала в локальный набор.
type Origin string

const (
	// OriginRemote запись пришла из снапшота удалённого хранилища.
	OriginRemote Origin = "remote"
	// OriginLocal оптимистичная запись, ещё не подтверждённая хранилищем.
	OriginLocal Origin = "local"
)

// TruckType тип кузова фуры.
type TruckType string

const (
	TruckTent      TruckType = "TENT"
	TruckContainer TruckType = "CONTAINER"
	TruckRef       TruckType = "REF"
	TruckBoard     TruckType = "BOARD"
	TruckMega      TruckType = "MEGA"
	TruckPlatform  TruckType = "PLATFORM"
	TruckTanker    TruckType = "TANKER"
)

// TruckDetails поля, присущие только объявлению о фуре.
type TruckDetails struct {
	TruckType TruckType `json:"truckType"`
	Capacity  float64   `json:"capacity"`
	IsEmpty   bool      `json:"isEmpty"`
}

// CargoDetails поля, присущие только объявлению о грузе.
type CargoDetails struct {
	Weight           float64  `json:"weight"`
	Volume           float64  `json:"volume,omitempty"`
	CargoType        string   `json:"cargoType"`
	Price            float64  `json:"price,omitempty"`
	Currency         string   `json:"currency"`
	HasPrepayment    bool     `json:"hasPrepayment,omitempty"`
	NeededTruckTypes []string `json:"neededTruckTypes,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// Listing объявление доски: фура или груз. Kind фиксирует, какой из
// вариантных блоков (Truck/Cargo) заполнен; второй всегда nil.
// Временные метки в миллисекундах Unix; ExpiresAt == 0 у старых записей
// означает «без срока».
type Listing struct {
	ID        string        `json:"id"`
	Kind      ListingKind   `json:"kind"`
	CreatorID string        `json:"creatorId,omitempty"`
	Status    ListingStatus `json:"status"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
	ExpiresAt int64 `json:"expiresAt,omitempty"`

	ContactName    string `json:"contactName,omitempty"`
	ContactPhone   string `json:"contactPhone,omitempty"`
	TelegramHandle string `json:"telegramHandle,omitempty"`

	FromCity string `json:"fromCity"`
	ToCity   string `json:"toCity"`
	Date     string `json:"date,omitempty"`
	Urgent   bool   `json:"urgent,omitempty"`
	Comment  string `json:"comment,omitempty"`

	Truck *TruckDetails `json:"truck,omitempty"`
	Cargo *CargoDetails `json:"cargo,omitempty"`

	// Origin живёт только в памяти и не сериализуется.
	Origin Origin `json:"-"`
}

// Expired сообщает, истёк ли срок показа на момент now (мс).
func (l Listing) Expired(now int64) bool {
	return l.ExpiresAt != 0 && l.ExpiresAt <= now
}

// OwnedBy проверяет, принадлежит ли объявление данному аккаунту.
func (l Listing) OwnedBy(id string) bool {
	return id != "" && l.CreatorID == id
}

// Identity описывает аккаунт, от имени которого выполняется операция.
// Анонимная личность может читать доску, но не изменять её.
type Identity struct {
	ID          string
	Name        string
	IsAnonymous bool
}

// Anonymous возвращает анонимную личность.
func Anonymous() Identity {
	return Identity{IsAnonymous: true}
}

// RouteQuery запрос совета ассистента по маршруту.
type RouteQuery struct {
	From    string
	To      string
	Kind    ListingKind
	Details string
}

// Citation ссылка на источник в ответе ассистента.
type Citation struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// RouteAdvice ответ ассистента по маршруту.
type RouteAdvice struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
}
