package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON reads the request body into dst. An oversized body reports
// BODY_TOO_LARGE; anything else that fails to parse reports INVALID_BODY.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.BodyTooLarge()
		}
		return apperrors.InvalidBody(err)
	}
	return nil
}
