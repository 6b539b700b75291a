package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"sysync/internal/sysync"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sysync.ErrBackupNotFound):
		return http.StatusNotFound
	case errors.Is(err, sysync.ErrNoValidSettings),
		errors.Is(err, sysync.ErrDuplicateSettingType),
		errors.Is(err, sysync.ErrSizeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, sysync.ErrIntegrityViolation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func copyResponse(w http.ResponseWriter, r io.Reader) (int64, error) {
	return io.Copy(w, r)
}
