package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SigNoz/marketplace-storefront/internal/apiclient"
	"github.com/SigNoz/marketplace-storefront/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("error", err))
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps err onto a status code and a JSON error body
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		slog.DebugContext(r.Context(), "request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeMessage(w, status, message)
}

func classify(err error) (int, string) {
	var (
		vErr   *services.ValidationError
		apiErr *apiclient.APIError
		mErr   *apiclient.MalformedResponseError
		tErr   *apiclient.TransportError
	)

	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Error()
	case errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.As(err, &apiErr):
		return apiErr.StatusCode, apiclient.Message(err)
	case errors.As(err, &mErr):
		return http.StatusBadGateway, apiclient.Message(err)
	case errors.As(err, &tErr):
		return http.StatusServiceUnavailable, apiclient.Message(err)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
