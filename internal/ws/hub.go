package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/metrics"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
)

// Close reasons sent to clients that are refused or disconnected.
const (
	ReasonCodeRequired    = "Code required"
	ReasonSessionNotFound = "Session not found"
	ReasonLookupFailed    = "Session lookup failed"
	ReasonShuttingDown    = "Server shutting down"
)

var (
	ErrCodeRequired    = errors.New("code required")
	ErrSessionNotFound = errors.New("session not found")
	ErrHubClosed       = errors.New("hub closed")
)

// SessionLookup resolves a code to its live session, or nil when there is none.
type SessionLookup interface {
	GetSession(ctx context.Context, code string) (*model.Session, error)
}

type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      config.SocketWriteWait,
		PongWait:       config.SocketPongWait,
		PingPeriod:     config.SocketPingPeriod,
		MaxMessageSize: config.SocketMaxMessageSize,
		SendBuffer:     config.SocketSendBuffer,
	}
}

// Hub tracks which live connections are attached to which session code and
// fans events out to them. The registry lock is never held during storage
// lookups or socket writes.
type Hub struct {
	lookup SessionLookup
	opts   Options
	rooms  map[string]map[*Client]struct{}
	closed bool
	mu     sync.RWMutex
}

func NewHub(lookup SessionLookup, opts Options) *Hub {
	return &Hub{
		lookup: lookup,
		opts:   opts,
		rooms:  make(map[string]map[*Client]struct{}),
	}
}

// NewClient wraps an upgraded connection. The client stays pending until Admit.
func (h *Hub) NewClient(conn *websocket.Conn) *Client {
	return newClient(h, conn)
}

// Admit validates the code and registers the client under it. On failure the
// connection is closed with a policy violation (or internal error when the
// lookup itself failed) and the client is never registered.
func (h *Hub) Admit(ctx context.Context, c *Client, code string) error {
	if code == "" {
		h.reject(c, websocket.ClosePolicyViolation, ReasonCodeRequired, "code_required")
		return ErrCodeRequired
	}

	session, err := h.lookup.GetSession(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("clientId", c.ID).Msg("live connection session lookup failed")
		h.reject(c, websocket.CloseInternalServerErr, ReasonLookupFailed, "lookup_failed")
		return err
	}
	if session == nil {
		h.reject(c, websocket.ClosePolicyViolation, ReasonSessionNotFound, "session_not_found")
		return ErrSessionNotFound
	}

	peers, count, ok := h.register(c, code)
	if !ok {
		h.reject(c, websocket.CloseGoingAway, ReasonShuttingDown, "shutting_down")
		return ErrHubClosed
	}

	metrics.LiveConnections.Inc()
	go c.writePump()
	go c.readPump()

	log.Info().
		Str("clientId", c.ID).
		Str("code", code).
		Int("clientCount", count).
		Msg("live connection admitted")

	h.deliver(peers, model.PresenceEvent(model.EventJoin, count))
	return nil
}

// register adds c under code and returns the peers that were already there.
func (h *Hub) register(c *Client, code string) ([]*Client, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, 0, false
	}

	room := h.rooms[code]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[code] = room
	}
	peers := snapshot(room)
	room[c] = struct{}{}
	c.code = code
	c.state.Store(stateOpen)

	return peers, len(room), true
}

func (h *Hub) reject(c *Client, closeCode int, reason, label string) {
	metrics.ConnectionsRejected.WithLabelValues(label).Inc()
	c.shutdown(closeCode, reason)

	msg := websocket.FormatCloseMessage(closeCode, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteWait))
	_ = c.conn.Close()

	log.Info().
		Str("clientId", c.ID).
		Int("closeCode", closeCode).
		Str("reason", reason).
		Msg("live connection rejected")
}

// Remove unregisters c and tells its peers. Safe to call more than once and
// for clients that were never admitted.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	room := h.rooms[c.code]
	_, registered := room[c]
	var peers []*Client
	count := 0
	if registered {
		delete(room, c)
		count = len(room)
		if count == 0 {
			delete(h.rooms, c.code)
		} else {
			peers = snapshot(room)
		}
	}
	h.mu.Unlock()

	c.shutdown(websocket.CloseNormalClosure, "")
	if !registered {
		return
	}

	metrics.LiveConnections.Dec()
	log.Info().
		Str("clientId", c.ID).
		Str("code", c.code).
		Int("clientCount", count).
		Msg("live connection removed")

	h.deliver(peers, model.PresenceEvent(model.EventLeave, count))
}

// Broadcast sends event to every open connection registered under code at the
// moment of the call. Connections that are closing or whose buffer is full
// are skipped.
func (h *Hub) Broadcast(code string, event model.Event) {
	h.mu.RLock()
	clients := snapshot(h.rooms[code])
	h.mu.RUnlock()

	h.deliver(clients, event)
}

func (h *Hub) deliver(clients []*Client, event model.Event) {
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("eventType", string(event.Type)).Msg("failed to encode event")
		return
	}

	eventType := string(event.Type)
	for _, c := range clients {
		if !c.isOpen() {
			metrics.EventsDropped.WithLabelValues(eventType).Inc()
			continue
		}
		select {
		case c.send <- data:
			metrics.EventsDelivered.WithLabelValues(eventType).Inc()
		default:
			metrics.EventsDropped.WithLabelValues(eventType).Inc()
			log.Warn().
				Str("clientId", c.ID).
				Str("eventType", eventType).
				Msg("client event buffer full, dropping event")
		}
	}
}

// Close disconnects every client and refuses further admissions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Client
	for _, room := range h.rooms {
		all = append(all, snapshot(room)...)
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.shutdown(websocket.CloseGoingAway, ReasonShuttingDown)
		metrics.LiveConnections.Dec()
	}

	if len(all) > 0 {
		log.Info().Int("clientCount", len(all)).Msg("live connections closed")
	}
}

func (h *Hub) ClientCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, room := range h.rooms {
		total += len(room)
	}
	return total
}

func snapshot(room map[*Client]struct{}) []*Client {
	clients := make([]*Client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	return clients
}
