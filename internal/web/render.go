package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hpungsan/tether/internal/errors"
)

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes the error envelope. Storage and internal failures are logged
// in full and reported to the caller without their underlying cause.
func renderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	tErr := errors.As(err)

	message := tErr.Message
	details := tErr.Details
	switch tErr.Code {
	case errors.ErrInternal:
		message, details = "internal error", nil
	case errors.ErrStorage:
		message, details = "storage error", nil
	}
	if tErr.Status >= http.StatusInternalServerError {
		logger.Error("request error",
			"request_id", RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"code", tErr.Code,
			"error", err,
		)
	}

	body := map[string]any{
		"code":    string(tErr.Code),
		"message": message,
		"status":  tErr.Status,
	}
	if len(details) > 0 {
		body["details"] = details
	}
	renderJSON(w, tErr.Status, map[string]any{"error": body})
}

// decodeJSON reads exactly one JSON object from the body into dst.
// Unknown fields and bodies over limit bytes are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case stderrors.As(err, &maxErr):
			tErr := errors.NewValidation(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			tErr.Status = http.StatusRequestEntityTooLarge
			return tErr
		case stderrors.Is(err, io.EOF):
			return errors.NewValidation("request body is required")
		default:
			return errors.NewValidation("invalid request body: " + err.Error())
		}
	}
	if dec.More() {
		return errors.NewValidation("request body must contain a single JSON object")
	}
	return nil
}
