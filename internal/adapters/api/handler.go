// Package api собирает HTTP-маршруты доски объявлений.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gruz-board/internal/domain"
	gruzhttp "gruz-board/internal/infra/http"
	"gruz-board/internal/usecase/board"
	"gruz-board/internal/usecase/gate"
	"gruz-board/internal/usecase/history"
	"gruz-board/internal/usecase/lifecycle"
)

// Handler обслуживает REST API доски.
type Handler struct {
	board     *board.Store
	lifecycle *lifecycle.Service
	gate      *gate.Service
	history   *history.Service
	assistant domain.Assistant
	log       zerolog.Logger
	now       func() int64
}

// NewHandler создаёт обработчик.
func NewHandler(b *board.Store, lc *lifecycle.Service, g *gate.Service, h *history.Service, a domain.Assistant, logger zerolog.Logger) *Handler {
	return &Handler{
		board:     b,
		lifecycle: lc,
		gate:      g,
		history:   h,
		assistant: a,
		log:       logger,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Register вешает маршруты на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/listings", func(r chi.Router) {
			r.Get("/", h.listListings)
			r.Post("/", h.createListing)
			r.Get("/{id}", h.getListing)
			r.Patch("/{id}", h.editListing)
			r.Delete("/{id}", h.deleteListing)
			r.Post("/{id}/status", h.changeStatus)
		})
		r.Get("/stats", h.stats)
		r.Route("/profile", func(r chi.Router) {
			r.Get("/listings", h.myListings)
			r.Get("/recent", h.recentViewed)
		})
		r.Route("/gate", func(r chi.Router) {
			r.Post("/request", h.gateRequest)
			r.Post("/subscribe", h.gateSubscribe)
			r.Post("/confirm", h.gateConfirm)
			r.Post("/abandon", h.gateAbandon)
			r.Get("/state", h.gateState)
		})
		r.Route("/assist", func(r chi.Router) {
			r.Get("/cities", h.assistCities)
			r.Post("/route", h.assistRoute)
		})
	})
}

type listResponse struct {
	Items []domain.Listing `json:"items"`
	Stale bool             `json:"stale"`
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	q := board.SearchQuery{
		Kind: domain.ListingKind(r.URL.Query().Get("kind")),
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if v := r.URL.Query().Get("urgent"); v != "" {
		q.UrgentOnly, _ = strconv.ParseBool(v)
	}
	items := board.Search(h.board.Active(h.now()), q)
	writeJSON(w, http.StatusOK, listResponse{Items: items, Stale: h.board.FeedError() != nil})
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	l, ok := h.board.Get(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, domain.ErrNotFound)
		return
	}
	h.history.Record(r.Context(), gruzhttp.IdentityFrom(r.Context()), l.ID)
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, &domain.ValidationError{Field: "body", Reason: "невалидный JSON"})
		return
	}
	l, err := h.lifecycle.Create(r.Context(), gruzhttp.IdentityFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handler) editListing(w http.ResponseWriter, r *http.Request) {
	var in lifecycle.EditInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, &domain.ValidationError{Field: "body", Reason: "невалидный JSON"})
		return
	}
	l, err := h.lifecycle.Edit(r.Context(), gruzhttp.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.Delete(r.Context(), gruzhttp.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status domain.ListingStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, &domain.ValidationError{Field: "body", Reason: "невалидный JSON"})
		return
	}
	l, err := h.lifecycle.ChangeStatus(r.Context(), gruzhttp.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, board.CountStats(h.board.Active(h.now())))
}

// myListings отдаёт все записи владельца, включая просроченные и
// закрытые: владелец управляет ими из профиля.
func (h *Handler) myListings(w http.ResponseWriter, r *http.Request) {
	actor := gruzhttp.IdentityFrom(r.Context())
	if actor.IsAnonymous {
		h.writeError(w, domain.ErrAuthRequired)
		return
	}
	mine := make([]domain.Listing, 0)
	for _, l := range h.board.All() {
		if l.OwnedBy(actor.ID) {
			mine = append(mine, l)
		}
	}
	writeJSON(w, http.StatusOK, mine)
}

func (h *Handler) recentViewed(w http.ResponseWriter, r *http.Request) {
	items, err := h.history.Recent(r.Context(), gruzhttp.IdentityFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = make([]domain.Listing, 0)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) gateRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Kind domain.ListingKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, &domain.ValidationError{Field: "body", Reason: "невалидный JSON"})
		return
	}
	d, err := h.gate.RequestCreate(r.Context(), gruzhttp.IdentityFrom(r.Context()), in.Kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) gateSubscribe(w http.ResponseWriter, r *http.Request) {
	actor := gruzhttp.IdentityFrom(r.Context())
	if actor.IsAnonymous {
		h.writeError(w, domain.ErrAuthRequired)
		return
	}
	st, err := h.gate.TriggerExternalAction(actor.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) gateConfirm(w http.ResponseWriter, r *http.Request) {
	actor := gruzhttp.IdentityFrom(r.Context())
	if actor.IsAnonymous {
		h.writeError(w, domain.ErrAuthRequired)
		return
	}
	kind, err := h.gate.Confirm(r.Context(), actor.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocked": true, "pending": kind})
}

func (h *Handler) gateAbandon(w http.ResponseWriter, r *http.Request) {
	actor := gruzhttp.IdentityFrom(r.Context())
	if actor.IsAnonymous {
		h.writeError(w, domain.ErrAuthRequired)
		return
	}
	h.gate.Abandon(actor.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) gateState(w http.ResponseWriter, r *http.Request) {
	actor := gruzhttp.IdentityFrom(r.Context())
	if actor.IsAnonymous {
		h.writeError(w, domain.ErrAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, h.gate.StatusFor(r.Context(), actor.ID))
}

// assistCities подсказки ассистента необязательны: любая его ошибка
// превращается в пустой список, форма продолжает работать.
func (h *Handler) assistCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.assistant.SuggestCities(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.log.Warn().Err(err).Msg("api: подсказки городов недоступны")
		cities = nil
	}
	if cities == nil {
		cities = make([]string, 0)
	}
	writeJSON(w, http.StatusOK, cities)
}

func (h *Handler) assistRoute(w http.ResponseWriter, r *http.Request) {
	var q domain.RouteQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		h.writeError(w, &domain.ValidationError{Field: "body", Reason: "невалидный JSON"})
		return
	}
	advice, err := h.assistant.AnalyzeRoute(r.Context(), q)
	if err != nil {
		h.log.Warn().Err(err).Msg("api: справка по маршруту недоступна")
		advice = domain.RouteAdvice{}
	}
	writeJSON(w, http.StatusOK, advice)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	var trErr *domain.InvalidTransitionError
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		gruzhttp.WriteError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrForbidden):
		gruzhttp.WriteError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrNotFound):
		gruzhttp.WriteError(w, http.StatusNotFound, err)
	case errors.As(err, &vErr):
		gruzhttp.WriteError(w, http.StatusBadRequest, err)
	case errors.As(err, &trErr),
		errors.Is(err, gate.ErrNoSession),
		errors.Is(err, gate.ErrNotConfirmable):
		gruzhttp.WriteError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrRemoteUnavailable),
		errors.Is(err, domain.ErrAIUnavailable):
		gruzhttp.WriteError(w, http.StatusServiceUnavailable, err)
	default:
		h.log.Error().Err(err).Msg("api: необработанная ошибка")
		gruzhttp.WriteError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
