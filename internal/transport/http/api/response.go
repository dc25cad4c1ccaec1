package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"minutehr/internal/domain/permissions"
	"minutehr/internal/domain/settings"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

// FailError maps the resolver sentinel errors onto HTTP statuses so handlers
// can bubble them up without a switch of their own.
func FailError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, settings.ErrUnknownModule), errors.Is(err, settings.ErrUnknownKey):
		Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, settings.ErrInvalidScope), errors.Is(err, settings.ErrInvalidValue):
		Fail(w, http.StatusBadRequest, "invalid_request", err.Error(), requestID)
	case errors.Is(err, settings.ErrNoContext), errors.Is(err, permissions.ErrUserNotLoaded):
		Fail(w, http.StatusUnauthorized, "unauthorized", err.Error(), requestID)
	default:
		Fail(w, http.StatusInternalServerError, "internal", "internal error", requestID)
	}
}
