package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/metrics"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/repository"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/util"
)

const DefaultMaxCodeAttempts = 10

// Notifier pushes events to the live connections attached to a code.
// Delivery is best effort and never reports failure to the caller.
type Notifier interface {
	Broadcast(code string, event model.Event)
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(string, model.Event) {}

type SessionService struct {
	sessions    repository.SessionRepository
	items       repository.ItemRepository
	codes       CodeGenerator
	notifier    Notifier
	maxAttempts int
}

func NewSessionService(
	sessions repository.SessionRepository,
	items repository.ItemRepository,
	codes CodeGenerator,
	maxAttempts int,
) *SessionService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCodeAttempts
	}
	return &SessionService{
		sessions:    sessions,
		items:       items,
		codes:       codes,
		notifier:    noopNotifier{},
		maxAttempts: maxAttempts,
	}
}

// SetNotifier wires the fanout hub. It must be called before serving traffic.
func (s *SessionService) SetNotifier(n Notifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// CreateSession allocates a code not held by any live session and stores a
// new session under it.
func (s *SessionService) CreateSession(ctx context.Context) (*model.Session, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, err := s.codes.Generate()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate pairing code").WithCause(err)
		}

		session, created, err := s.sessions.CreateIfCodeFree(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		if !created {
			metrics.CodeCollisions.Inc()
			log.Debug().Int("attempt", attempt).Msg("pairing code collision, retrying")
			continue
		}

		metrics.SessionsCreated.Inc()
		log.Info().
			Int64("sessionId", session.ID).
			Str("code", session.Code).
			Time("expiresAt", session.ExpiresAt).
			Int("attempts", attempt).
			Msg("session created")

		return session, nil
	}

	metrics.CodeSpaceExhausted.Inc()
	log.Error().Int("attempts", s.maxAttempts).Msg("no free pairing code within retry budget")
	return nil, apperrors.CodeSpaceExhausted(s.maxAttempts)
}

// GetSession returns nil, nil for unknown and expired codes alike.
func (s *SessionService) GetSession(ctx context.Context, code string) (*model.Session, error) {
	if !util.IsValidCode(code) {
		return nil, nil
	}

	session, err := s.sessions.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return session, nil
}

func (s *SessionService) ListItems(ctx context.Context, code string) ([]model.SharedItem, error) {
	session, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	items, err := s.items.FindBySessionID(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// AddItem stores an item in the session and notifies its live connections.
// The session is resolved before the request is validated, so an unknown
// code reports not found even when the body is also invalid.
func (s *SessionService) AddItem(ctx context.Context, code string, req model.AddItemRequest) (*model.SharedItem, error) {
	session, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	payload, fieldErr := req.Validate()
	if fieldErr != nil {
		return nil, apperrors.ValidationError(fieldErr.Field, fieldErr.Message)
	}

	item, err := s.items.Create(ctx, model.CreateItemParams{
		SessionID: session.ID,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	metrics.ItemsCreated.WithLabelValues(string(item.Type)).Inc()
	log.Info().
		Int64("sessionId", session.ID).
		Int64("itemId", item.ID).
		Str("type", string(item.Type)).
		Msg("item added")

	s.notifier.Broadcast(session.Code, model.NewItemEvent(item))

	return item, nil
}

// EnsureSession returns the live session for a fixed code, creating it when
// absent. Used for seeding development data.
func (s *SessionService) EnsureSession(ctx context.Context, code string) (*model.Session, bool, error) {
	if !util.IsValidCode(code) {
		return nil, false, apperrors.ValidationError("code", "code must be 6 digits")
	}

	session, created, err := s.sessions.CreateIfCodeFree(ctx, code)
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	return session, created, nil
}

func (s *SessionService) resolve(ctx context.Context, code string) (*model.Session, error) {
	session, err := s.GetSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.SessionNotFound()
	}
	return session, nil
}
