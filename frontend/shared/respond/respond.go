// Package respond writes JSON bodies and maps domain errors to HTTP status
// codes.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"packtrack/infrastructure/arbiter"
	"packtrack/infrastructure/confirm"
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scansession"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
	}
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	JSON(w, r, status, ErrorBody{Error: msg, Code: code})
}

// BadRequest reports an unreadable request body or parameter.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	Error(w, r, http.StatusBadRequest, "bad_request", msg)
}

// Err maps err to a status and error code and writes it.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	Error(w, r, status, code, err.Error())
}

// Classify returns the HTTP status and error code for err.
func Classify(err error) (int, string) {
	var te *lifecycle.TransitionError
	switch {
	case errors.As(err, &te):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, lifecycle.ErrConcurrentChange):
		return http.StatusConflict, "concurrent_change"
	case errors.Is(err, lifecycle.ErrReasonRequired), errors.Is(err, lifecycle.ErrPackerRequired):
		return http.StatusUnprocessableEntity, "invalid_request"
	case errors.Is(err, arbiter.ErrNoOperator):
		return http.StatusUnprocessableEntity, "no_encargado"
	case errors.Is(err, arbiter.ErrNotListening):
		return http.StatusConflict, "not_listening"
	case errors.Is(err, arbiter.ErrStopping):
		return http.StatusServiceUnavailable, "stopping"
	case errors.Is(err, confirm.ErrPending):
		return http.StatusConflict, "confirmation_pending"
	case errors.Is(err, confirm.ErrNoPending):
		return http.StatusConflict, "no_confirmation"
	case errors.Is(err, scansession.ErrExportStale):
		return http.StatusConflict, "export_stale"
	case errors.Is(err, scansession.ErrNoBatch), errors.Is(err, scansession.ErrWrongWorkflow):
		return http.StatusConflict, "wrong_workflow"
	case errors.Is(err, scansession.ErrNothingToCommit):
		return http.StatusUnprocessableEntity, "empty_list"
	case errors.Is(err, scansession.ErrUnknownWorkflow):
		return http.StatusUnprocessableEntity, "unknown_workflow"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// OutcomeStatus is the HTTP status for a pipeline outcome.
func OutcomeStatus(out scansession.Outcome) int {
	switch out.Kind {
	case scansession.OutcomePendingConfirmation:
		return http.StatusAccepted
	case scansession.OutcomeLookupFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

// Decode reads a JSON request body into v. An empty body leaves v unchanged.
func Decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
