package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemoryStore(t *testing.T) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(24 * time.Hour)
	store.SetClock(clock.Now)
	return store, clock
}

func TestMemorySessionRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("creates with 24h expiry", func(t *testing.T) {
		store, clock := newMemoryStore(t)

		session, _, err := store.Sessions().CreateIfCodeFree(ctx, "482913")
		require.NoError(t, err)
		assert.Equal(t, int64(1), session.ID)
		assert.Equal(t, clock.Now(), session.CreatedAt)
		assert.Equal(t, clock.Now().Add(24*time.Hour), session.ExpiresAt)
	})

	t.Run("finds live session by exact code", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		created, _, err := store.Sessions().CreateIfCodeFree(ctx, "482913")
		require.NoError(t, err)

		found, err := store.Sessions().FindActiveByCode(ctx, "482913")
		require.NoError(t, err)
		assert.Equal(t, created, found)

		missing, err := store.Sessions().FindActiveByCode(ctx, "48291")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("expired session is absent", func(t *testing.T) {
		store, clock := newMemoryStore(t)
		_, _, err := store.Sessions().CreateIfCodeFree(ctx, "111111")
		require.NoError(t, err)

		clock.Advance(24*time.Hour - time.Second)
		found, err := store.Sessions().FindActiveByCode(ctx, "111111")
		require.NoError(t, err)
		assert.NotNil(t, found)

		clock.Advance(time.Second)
		found, err = store.Sessions().FindActiveByCode(ctx, "111111")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("expired code can be reused", func(t *testing.T) {
		store, clock := newMemoryStore(t)
		old, _, err := store.Sessions().CreateIfCodeFree(ctx, "222222")
		require.NoError(t, err)

		clock.Advance(25 * time.Hour)
		fresh, _, err := store.Sessions().CreateIfCodeFree(ctx, "222222")
		require.NoError(t, err)

		found, err := store.Sessions().FindActiveByCode(ctx, "222222")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, fresh.ID, found.ID)
		assert.NotEqual(t, old.ID, found.ID)
	})

	t.Run("delete expired honours grace", func(t *testing.T) {
		store, clock := newMemoryStore(t)
		_, _, err := store.Sessions().CreateIfCodeFree(ctx, "333333")
		require.NoError(t, err)

		clock.Advance(25 * time.Hour)
		count, err := store.Sessions().DeleteExpired(ctx, 2*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		clock.Advance(2 * time.Hour)
		count, err = store.Sessions().DeleteExpired(ctx, 2*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("cancelled context is a database error", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := store.Sessions().CreateIfCodeFree(cancelled, "444444")
		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}

func TestMemoryItemRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("lists newest first", func(t *testing.T) {
		store, clock := newMemoryStore(t)
		session, _, err := store.Sessions().CreateIfCodeFree(ctx, "482913")
		require.NoError(t, err)

		for _, content := range []string{"a", "b", "c"} {
			_, err := store.Items().Create(ctx, model.CreateItemParams{
				SessionID: session.ID,
				Payload:   model.TextPayload{Content: content},
			})
			require.NoError(t, err)
			clock.Advance(time.Millisecond)
		}

		items, err := store.Items().FindBySessionID(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "c", *items[0].Content)
		assert.Equal(t, "b", *items[1].Content)
		assert.Equal(t, "a", *items[2].Content)
	})

	t.Run("same timestamp falls back to id order", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		session, _, err := store.Sessions().CreateIfCodeFree(ctx, "482913")
		require.NoError(t, err)

		first, err := store.Items().Create(ctx, model.CreateItemParams{SessionID: session.ID, Payload: model.TextPayload{Content: "1"}})
		require.NoError(t, err)
		second, err := store.Items().Create(ctx, model.CreateItemParams{SessionID: session.ID, Payload: model.TextPayload{Content: "2"}})
		require.NoError(t, err)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)

		items, err := store.Items().FindBySessionID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, items[0].ID)
	})

	t.Run("unknown session is referential", func(t *testing.T) {
		store, _ := newMemoryStore(t)

		_, err := store.Items().Create(ctx, model.CreateItemParams{SessionID: 99, Payload: model.TextPayload{Content: "x"}})
		assert.Equal(t, apperrors.ErrCodeReferential, apperrors.GetCode(err))
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		store, _ := newMemoryStore(t)

		items, err := store.Items().FindBySessionID(ctx, 1)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("sessions do not see each other's items", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		a, _, _ := store.Sessions().CreateIfCodeFree(ctx, "100001")
		b, _, _ := store.Sessions().CreateIfCodeFree(ctx, "100002")

		_, err := store.Items().Create(ctx, model.CreateItemParams{SessionID: a.ID, Payload: model.TextPayload{Content: "only a"}})
		require.NoError(t, err)

		items, err := store.Items().FindBySessionID(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestMemorySessionRepository_CreateIfCodeFree(t *testing.T) {
	ctx := context.Background()

	t.Run("live code is returned instead of duplicated", func(t *testing.T) {
		store, _ := newMemoryStore(t)

		first, created, err := store.Sessions().CreateIfCodeFree(ctx, "482913")
		require.NoError(t, err)
		assert.True(t, created)

		holder, created, err := store.Sessions().CreateIfCodeFree(ctx, "482913")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, holder.ID)
	})

	t.Run("concurrent creators of one code get a single session", func(t *testing.T) {
		store, _ := newMemoryStore(t)

		const callers = 64
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []int64
			holders = make(map[int64]int)
		)
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				session, created, err := store.Sessions().CreateIfCodeFree(ctx, "111111")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				holders[session.ID]++
				if created {
					winners = append(winners, session.ID)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Len(t, winners, 1)
		assert.Equal(t, map[int64]int{winners[0]: callers}, holders)
	})
}
