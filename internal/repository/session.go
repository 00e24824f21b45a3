package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/database"
	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
)

type SessionRepository interface {
	// CreateIfCodeFree stores a new session under code unless a live session
	// already holds it, in which case that session is returned with false.
	// The check and the insert are atomic.
	CreateIfCodeFree(ctx context.Context, code string) (*model.Session, bool, error)
	// FindActiveByCode returns nil, nil when no live session has the code.
	FindActiveByCode(ctx context.Context, code string) (*model.Session, error)
	// DeleteExpired removes sessions that expired more than grace ago.
	DeleteExpired(ctx context.Context, grace time.Duration) (int64, error)
}

type sessionRepo struct {
	db  *database.DB
	ttl time.Duration
	now func() time.Time
}

func NewSessionRepository(db *database.DB, ttl time.Duration) SessionRepository {
	return &sessionRepo{db: db, ttl: ttl, now: time.Now}
}

func (r *sessionRepo) CreateIfCodeFree(ctx context.Context, code string) (*model.Session, bool, error) {
	var (
		session *model.Session
		created bool
	)

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Serializes creators of the same code until commit.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, code); err != nil {
			return err
		}

		live, err := findActiveByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if live != nil {
			session = live
			return nil
		}

		now := r.now().UTC()
		var inserted model.Session
		if err := tx.GetContext(ctx, &inserted, `
			INSERT INTO sessions (code, created_at, expires_at)
			VALUES ($1, $2, $3)
			RETURNING *
		`, code, now, now.Add(r.ttl)); err != nil {
			return err
		}
		session, created = &inserted, true
		return nil
	})
	if err != nil {
		return nil, false, apperrors.Database(err)
	}
	return session, created, nil
}

func (r *sessionRepo) FindActiveByCode(ctx context.Context, code string) (*model.Session, error) {
	found, err := findActiveByCode(ctx, r.db, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return found, nil
}

func findActiveByCode(ctx context.Context, db database.DBTX, code string) (*model.Session, error) {
	var session model.Session
	err := db.GetContext(ctx, &session, `
		SELECT * FROM sessions
		WHERE code = $1 AND expires_at > NOW()
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, code)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, grace time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at < $1
	`, r.now().UTC().Add(-grace))
	if err != nil {
		return 0, apperrors.Database(err)
	}
	return result.RowsAffected()
}
