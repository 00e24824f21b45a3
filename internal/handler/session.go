package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/audit"
	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	createLimiter  func(http.Handler) http.Handler
}

// NewSessionHandler builds the session routes. createLimiter wraps only
// POST / and may be nil.
func NewSessionHandler(sessionService *service.SessionService, createLimiter func(http.Handler) http.Handler) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		createLimiter:  createLimiter,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.createLimiter != nil {
			r.Use(h.createLimiter)
		}
		r.Post("/", h.CreateSession)
	})
	r.Get("/{code}", h.GetSession)
	r.Get("/{code}/items", h.ListItems)
	r.Post("/{code}/items", h.AddItem)

	return r
}

// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.CreateSession(r.Context())
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeCodeSpaceExhausted) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventCodeSpaceExhausted})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventSessionCreate,
		Code:      session.Code,
		SessionID: session.ID,
	})

	writeJSON(w, http.StatusCreated, session)
}

// GET /api/sessions/{code}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	session, err := h.sessionService.GetSession(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	if session == nil {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventSessionLookupMiss, Code: code})
		writeError(w, apperrors.SessionNotFound())
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GET /api/sessions/{code}/items
func (h *SessionHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.sessionService.ListItems(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// POST /api/sessions/{code}/items
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req model.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.sessionService.AddItem(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}
