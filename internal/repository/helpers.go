package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound turns sql.ErrNoRows into (nil, nil) so Find* lookups can
// report "no live session" without an error:
//
//	var session model.Session
//	err := db.GetContext(ctx, &session, `SELECT * FROM sessions WHERE code = $1`, code)
//	found, err := HandleNotFound(&session, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return result, nil
	}
}
