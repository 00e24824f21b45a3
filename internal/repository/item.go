package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/database"
	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/model"
)

const pqForeignKeyViolation pq.ErrorCode = "23503"

type ItemRepository interface {
	Create(ctx context.Context, params model.CreateItemParams) (*model.SharedItem, error)
	// FindBySessionID returns items newest first, never nil.
	FindBySessionID(ctx context.Context, sessionID int64) ([]model.SharedItem, error)
}

type itemRepo struct {
	db database.DBTX
}

func NewItemRepository(db *sqlx.DB) ItemRepository {
	return &itemRepo{db: db}
}

func (r *itemRepo) Create(ctx context.Context, params model.CreateItemParams) (*model.SharedItem, error) {
	if params.Payload == nil {
		return nil, apperrors.Internal("item payload is required")
	}
	row := model.NewSharedItem(params.SessionID, params.Payload)

	var item model.SharedItem
	err := r.db.GetContext(ctx, &item, `
		INSERT INTO shared_items (session_id, type, content, file_url, file_name, file_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, row.SessionID, row.Type, row.Content, row.FileURL, row.FileName, row.FileSize)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.Referential("Session", err)
		}
		return nil, apperrors.Database(err)
	}
	return &item, nil
}

func (r *itemRepo) FindBySessionID(ctx context.Context, sessionID int64) ([]model.SharedItem, error) {
	items := []model.SharedItem{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM shared_items
		WHERE session_id = $1
		ORDER BY created_at DESC, id DESC
	`, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return items, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
