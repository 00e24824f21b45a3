package repository

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
)

// MemoryStore keeps sessions and items in process memory. It backs
// STORE_DRIVER=memory and the tests, and follows the same contract as the
// Postgres repositories.
type MemoryStore struct {
	mu          sync.RWMutex
	ttl         time.Duration
	now         func() time.Time
	nextSession int64
	nextItem    int64
	sessions    map[int64]*model.Session
	itemsBySess map[int64][]model.SharedItem
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:         ttl,
		now:         time.Now,
		sessions:    make(map[int64]*model.Session),
		itemsBySess: make(map[int64][]model.SharedItem),
	}
}

// SetClock replaces the time source. Only used by tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Ping satisfies the readiness check; the store is always reachable.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Sessions() SessionRepository {
	return &memorySessionRepo{store: s}
}

func (s *MemoryStore) Items() ItemRepository {
	return &memoryItemRepo{store: s}
}

type memorySessionRepo struct {
	store *MemoryStore
}

func (r *memorySessionRepo) CreateIfCodeFree(ctx context.Context, code string) (*model.Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, apperrors.Database(err)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if live := s.liveLocked(code, now); live != nil {
		existing := *live
		return &existing, false, nil
	}

	s.nextSession++
	createdAt := now.UTC()
	session := &model.Session{
		ID:        s.nextSession,
		Code:      code,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(s.ttl),
	}
	s.sessions[session.ID] = session

	created := *session
	return &created, true, nil
}

func (r *memorySessionRepo) FindActiveByCode(ctx context.Context, code string) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Database(err)
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := s.liveLocked(code, s.now())
	if found == nil {
		return nil, nil
	}
	result := *found
	return &result, nil
}

// liveLocked returns the newest live session holding code. s.mu must be held.
func (s *MemoryStore) liveLocked(code string, now time.Time) *model.Session {
	var found *model.Session
	for _, session := range s.sessions {
		if session.Code != code || session.IsExpired(now) {
			continue
		}
		if found == nil || session.ID > found.ID {
			found = session
		}
	}
	return found
}

func (r *memorySessionRepo) DeleteExpired(ctx context.Context, grace time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Database(err)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-grace)
	var deleted int64
	for id, session := range s.sessions {
		if session.ExpiresAt.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.itemsBySess, id)
			deleted++
		}
	}
	return deleted, nil
}

type memoryItemRepo struct {
	store *MemoryStore
}

func (r *memoryItemRepo) Create(ctx context.Context, params model.CreateItemParams) (*model.SharedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Database(err)
	}
	if params.Payload == nil {
		return nil, apperrors.Internal("item payload is required")
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[params.SessionID]; !ok {
		return nil, apperrors.Referential("Session", nil)
	}

	s.nextItem++
	item := model.NewSharedItem(params.SessionID, params.Payload)
	item.ID = s.nextItem
	item.CreatedAt = s.now().UTC()
	s.itemsBySess[params.SessionID] = append(s.itemsBySess[params.SessionID], item)

	return &item, nil
}

func (r *memoryItemRepo) FindBySessionID(ctx context.Context, sessionID int64) ([]model.SharedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Database(err)
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Items are appended in id order, so walking backwards yields newest first.
	stored := s.itemsBySess[sessionID]
	items := make([]model.SharedItem, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		items = append(items, stored[i])
	}
	return items, nil
}
