package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"price-hunter/pkg/models"
)

// follows RFC 7807: Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	pd := &ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}

	json.NewEncoder(w).Encode(pd)
}

func WriteInternalServerError(w http.ResponseWriter, err error, instance string) {
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), instance)
}

func WriteBadRequest(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail, instance)
}

func WriteNotFound(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail, instance)
}

func WriteMethodNotAllowed(w http.ResponseWriter, allowed, instance string) {
	w.Header().Set("Allow", allowed)
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "Use "+allowed+".", instance)
}

// StatusFor maps a manager error onto the HTTP status it is reported with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyQuery),
		errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrInvalidSource):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteErr writes err as problem details with the status from StatusFor.
func WriteErr(w http.ResponseWriter, err error, instance string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		WriteInternalServerError(w, err, instance)
		return
	}
	WriteError(w, status, http.StatusText(status), err.Error(), instance)
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
