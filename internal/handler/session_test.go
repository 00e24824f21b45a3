package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/httputil"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/repository"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/service"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]model.Event
}

func (n *recordingNotifier) Broadcast(code string, event model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string][]model.Event)
	}
	n.events[code] = append(n.events[code], event)
}

type fixture struct {
	router   http.Handler
	store    *repository.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T, createLimiter func(http.Handler) http.Handler) *fixture {
	t.Helper()
	store := repository.NewMemoryStore(24 * time.Hour)
	svc := service.NewSessionService(store.Sessions(), store.Items(), service.NewRandomCodeGenerator(), service.DefaultMaxCodeAttempts)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)

	r := chi.NewRouter()
	r.Mount("/api/sessions", NewSessionHandler(svc, createLimiter).Routes())
	return &fixture{router: r, store: store, notifier: notifier}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createSession(t *testing.T) model.Session {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var session model.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSessionHandler_CreateSession(t *testing.T) {
	t.Run("returns 201 with a six digit code", func(t *testing.T) {
		f := newFixture(t, nil)

		session := f.createSession(t)

		assert.Len(t, session.Code, 6)
		assert.NotZero(t, session.ID)
		assert.WithinDuration(t, session.CreatedAt.Add(24*time.Hour), session.ExpiresAt, time.Second)
	})

	t.Run("create limiter applies only to POST", func(t *testing.T) {
		deny := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				httputil.WriteError(w, apperrors.RateLimitExceeded())
			})
		}
		f := newFixture(t, deny)

		rec := f.do(t, http.MethodPost, "/api/sessions", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, apperrors.ErrCodeRateLimitExceeded, decodeError(t, rec).Code)

		rec = f.do(t, http.MethodGet, "/api/sessions/123456", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSessionHandler_GetSession(t *testing.T) {
	f := newFixture(t, nil)
	created := f.createSession(t)

	t.Run("known code", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/sessions/"+created.Code, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got model.Session
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, created.Code, got.Code)
	})

	t.Run("unknown and malformed codes are 404", func(t *testing.T) {
		for _, code := range []string{"000000", "12ab56", "1234567"} {
			rec := f.do(t, http.MethodGet, "/api/sessions/"+code, "")
			assert.Equal(t, http.StatusNotFound, rec.Code, code)
			assert.Equal(t, apperrors.ErrCodeNotFound, decodeError(t, rec).Code)
		}
	})

	t.Run("expired code is indistinguishable from unknown", func(t *testing.T) {
		f := newFixture(t, nil)
		now := time.Now()
		f.store.SetClock(func() time.Time { return now })
		session := f.createSession(t)

		f.store.SetClock(func() time.Time { return now.Add(25 * time.Hour) })
		expired := f.do(t, http.MethodGet, "/api/sessions/"+session.Code, "")
		unknown := f.do(t, http.MethodGet, "/api/sessions/999999", "")

		assert.Equal(t, http.StatusNotFound, expired.Code)
		assert.JSONEq(t, unknown.Body.String(), expired.Body.String())
	})
}

func TestSessionHandler_Items(t *testing.T) {
	t.Run("add text item then list", func(t *testing.T) {
		f := newFixture(t, nil)
		session := f.createSession(t)
		path := "/api/sessions/" + session.Code + "/items"

		rec := f.do(t, http.MethodPost, path, `{"type":"text","content":"hello"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var first model.SharedItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
		assert.Equal(t, model.ItemTypeText, first.Type)
		assert.Equal(t, session.ID, first.SessionID)
		require.NotNil(t, first.Content)
		assert.Equal(t, "hello", *first.Content)

		rec = f.do(t, http.MethodPost, path, `{"type":"file","fileName":"notes.pdf","fileUrl":"https://files.example/notes.pdf","fileSize":2048}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = f.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var items []model.SharedItem
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
		require.Len(t, items, 2)
		assert.Equal(t, model.ItemTypeFile, items[0].Type)
		assert.Equal(t, first.ID, items[1].ID)

		events := f.notifier.events[session.Code]
		require.Len(t, events, 2)
		assert.Equal(t, model.EventNewItem, events[0].Type)
	})

	t.Run("empty session lists an empty array", func(t *testing.T) {
		f := newFixture(t, nil)
		session := f.createSession(t)

		rec := f.do(t, http.MethodGet, "/api/sessions/"+session.Code+"/items", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t, nil)

		rec := f.do(t, http.MethodGet, "/api/sessions/555555/items", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = f.do(t, http.MethodPost, "/api/sessions/555555/items", `{"type":"text"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, "session is resolved before validation")
		assert.Empty(t, f.notifier.events)
	})

	t.Run("validation errors name the field", func(t *testing.T) {
		f := newFixture(t, nil)
		session := f.createSession(t)
		path := "/api/sessions/" + session.Code + "/items"

		tests := []struct {
			body  string
			field string
		}{
			{`{}`, "type"},
			{`{"type":"video"}`, "type"},
			{`{"type":"text","content":"   "}`, "content"},
			{`{"type":"file","fileUrl":"https://x"}`, "fileName"},
			{`{"type":"file","fileName":"a.txt","fileSize":-1}`, "fileSize"},
		}
		for _, tt := range tests {
			rec := f.do(t, http.MethodPost, path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, tt.body)
			resp := decodeError(t, rec)
			assert.Equal(t, apperrors.ErrCodeValidation, resp.Code)
			assert.Equal(t, tt.field, resp.Field, tt.body)
			assert.NotEmpty(t, resp.Message)
		}

		assert.Empty(t, f.notifier.events[session.Code])
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t, nil)
		session := f.createSession(t)

		rec := f.do(t, http.MethodPost, "/api/sessions/"+session.Code+"/items", `{"type":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apperrors.ErrCodeInvalidBody, decodeError(t, rec).Code)
	})

	t.Run("oversized body", func(t *testing.T) {
		f := newFixture(t, nil)
		session := f.createSession(t)

		body := `{"type":"text","content":"` + strings.Repeat("x", 128) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+session.Code+"/items", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		req.Body = http.MaxBytesReader(rec, req.Body, 32)
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, apperrors.ErrCodeBodyTooLarge, decodeError(t, rec).Code)
	})
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHealthHandler(failingPinger{}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("ready", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHealthHandler(repository.NewMemoryStore(time.Hour)).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ready"`)
	})

	t.Run("not ready when the store is unreachable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHealthHandler(failingPinger{err: errors.New("connection refused")}).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}
