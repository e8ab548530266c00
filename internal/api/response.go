package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/itstheanurag/gradebox/internal/executor"
	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/queue"
	"github.com/itstheanurag/gradebox/internal/sandbox"
)

const maxBodyBytes = 2 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{Error: &errorBody{Code: code, Message: msg}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// classify maps a grading error to a status code and an error code. Internal
// errors get a generic message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, languages.ErrLanguageNotFound):
		return http.StatusBadRequest, "UNSUPPORTED_LANGUAGE", err.Error()
	case errors.Is(err, problems.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, executor.ErrIncompleteTestCase):
		return http.StatusUnprocessableEntity, "INCOMPLETE_TEST_CASE", err.Error()
	case errors.Is(err, problems.ErrNoTestCases):
		return http.StatusUnprocessableEntity, "NO_TEST_CASES", err.Error()
	case errors.Is(err, sandbox.ErrProvision):
		return http.StatusServiceUnavailable, "SANDBOX_UNAVAILABLE", err.Error()
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable, "QUEUE_FULL", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "grading did not finish in time"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"
	}
}
