package report

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/kudoscope/internal/apperror"
)

// Headers must be fully set before WriteHeader; the body follows after.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status. The report surface is
// read-only, so the mapping is small: forbidden passes through, everything
// else is an internal error. The detailed message stays in the log — clients
// get the category only.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	errorType := "internal_error"
	if errors.Is(err, apperror.ErrForbidden) {
		status = http.StatusForbidden
		errorType = "forbidden"
	}

	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, status, map[string]string{"error": errorType})
}
