package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/audit"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
)

// Handler upgrades GET /ws?code=XXXXXX and hands the connection to the hub.
// The upgrade happens before the code is checked, so a bad code is reported
// with a close frame rather than an HTTP status.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("live connection upgrade failed")
		return
	}

	client := h.hub.NewClient(conn)
	code := r.URL.Query().Get("code")

	// The request context ends when this handler returns; admission only
	// needs its values.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), config.SocketAdmitTimeout)
	defer cancel()

	if err := h.hub.Admit(ctx, client, code); err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type: audit.EventConnectionRejected,
			Code: code,
			Details: map[string]interface{}{
				"clientId": client.ID,
				"reason":   err.Error(),
			},
		})
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
