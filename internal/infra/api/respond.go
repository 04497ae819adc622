package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"crazeai/internal/domain"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}

// fail maps a use-case error onto the HTTP surface. fallback is the message used
// for upstream failures that have no more specific wording.
func fail(w http.ResponseWriter, err error, fallback string) {
	status, msg := classify(err, fallback)
	writeError(w, status, msg, err.Error())
}

func classify(err error, fallback string) (int, string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		if ve.Reason == "required" && ve.Field != "" {
			return http.StatusBadRequest, strings.ToUpper(ve.Field[:1]) + ve.Field[1:] + " is required"
		}
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrEmptyText),
		errors.Is(err, domain.ErrNoAudio),
		errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case domain.IsTimeout(err):
		return http.StatusRequestTimeout, "Request timeout"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusNotImplemented, "Not available on this server"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, fallback
	}
}
