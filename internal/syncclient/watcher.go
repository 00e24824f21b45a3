package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
)

const initialBackoff = 500 * time.Millisecond

// ErrSessionNotFound ends a watch: the code never existed or has expired.
var ErrSessionNotFound = errors.New("session not found or expired")

type WatcherOptions struct {
	RefreshInterval time.Duration
	MaxBackoff      time.Duration
	// OnItems receives the full item list, newest first, after every fetch.
	OnItems func([]model.SharedItem)
	// OnPresence receives the connection count from join and leave events.
	OnPresence func(count int)
	// OnError receives the message of error events. They are logged when unset.
	OnError func(message string)
}

func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		RefreshInterval: config.SyncRefreshInterval,
		MaxBackoff:      config.SyncMaxBackoff,
	}
}

// Watcher keeps a local view of one session's items. Live events are only
// hints: every new_item, reconnect and refresh tick re-fetches the list.
type Watcher struct {
	client *Client
	code   string
	opts   WatcherOptions
	dialer *websocket.Dialer
}

func NewWatcher(client *Client, code string, opts WatcherOptions) *Watcher {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = config.SyncRefreshInterval
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = config.SyncMaxBackoff
	}
	return &Watcher{
		client: client,
		code:   code,
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type wireEvent struct {
	Type    model.EventType `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Run watches until ctx ends (returning nil) or the session goes away
// (returning ErrSessionNotFound).
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.client.GetSession(ctx, w.code); err != nil {
		if IsNotFound(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("resolve session: %w", err)
	}

	backoff := initialBackoff
	for {
		conn, _, err := w.dialer.DialContext(ctx, w.client.LiveURL(w.code), nil)
		if err == nil {
			backoff = initialBackoff
			err = w.serve(ctx, conn)
		}

		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrSessionNotFound):
			return err
		}

		log.Warn().Err(err).Str("code", w.code).Dur("retryIn", backoff).Msg("live connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, w.opts.MaxBackoff)
	}
}

// serve runs one connection until it fails.
func (w *Watcher) serve(ctx context.Context, conn *websocket.Conn) error {
	events := make(chan wireEvent, 16)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer func() {
		close(stop)
		conn.Close()
	}()

	go func() {
		for {
			var ev wireEvent
			if err := conn.ReadJSON(&ev); err != nil {
				readErr <- err
				return
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}()

	if err := w.refresh(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return ctx.Err()

		case <-ticker.C:
			if err := w.refresh(ctx); err != nil {
				return err
			}

		case ev := <-events:
			switch ev.Type {
			case model.EventNewItem:
				if err := w.refresh(ctx); err != nil {
					return err
				}
			case model.EventJoin, model.EventLeave:
				var presence model.PresencePayload
				if err := json.Unmarshal(ev.Payload, &presence); err == nil && w.opts.OnPresence != nil {
					w.opts.OnPresence(presence.Count)
				}
			case model.EventError:
				w.reportError(ev.Payload)
			}

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return ErrSessionNotFound
			}
			return err
		}
	}
}

func (w *Watcher) reportError(raw json.RawMessage) {
	var payload model.ErrorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Message == "" {
		payload.Message = string(raw)
	}
	if w.opts.OnError != nil {
		w.opts.OnError(payload.Message)
		return
	}
	log.Warn().Str("message", payload.Message).Str("code", w.code).Msg("server reported an error")
}

// refresh fetches the authoritative list. Transient failures are logged and
// left to the next trigger.
func (w *Watcher) refresh(ctx context.Context) error {
	items, err := w.client.ListItems(ctx, w.code)
	if err != nil {
		if IsNotFound(err) {
			return ErrSessionNotFound
		}
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("code", w.code).Msg("failed to refresh items")
		}
		return nil
	}

	if w.opts.OnItems != nil {
		w.opts.OnItems(items)
	}
	return nil
}
