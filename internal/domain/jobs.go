package domain

// WriteOp тип отложенной записи.
type WriteOp string

const (
	WriteCreate WriteOp = "create"
	WriteUpdate WriteOp = "update"
	WriteDelete WriteOp = "delete"
)

// WriteJob запись, которую не удалось выполнить синхронно.
// Воркер повторяет её, пока хранилище не ответит; порядок доставки не
// гарантируется — сходимость обеспечивает правило «снапшот побеждает».
type WriteJob struct {
	Op        WriteOp  `json:"op"`
	ListingID string   `json:"listing_id,omitempty"`
	Listing   *Listing `json:"listing,omitempty"`
	Attempt   int      `json:"attempt"`
}
