package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON envelope for every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind so clients can branch without parsing text.
type ErrorDetail struct {
	Kind    scheduling.Kind `json:"kind"`
	Message string          `json:"message"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind scheduling.Kind) int {
	switch kind {
	case scheduling.KindInvalidArgument, scheduling.KindRangeTooLarge:
		return http.StatusBadRequest
	case scheduling.KindUnauthorized:
		return http.StatusForbidden
	case scheduling.KindNotFound:
		return http.StatusNotFound
	case scheduling.KindSlotConflict, scheduling.KindLeaveConflict, scheduling.KindProviderOnLeave,
		scheduling.KindLeaveAlreadyStarted, scheduling.KindAlreadyElapsed, scheduling.KindInvalidState:
		return http.StatusConflict
	case scheduling.KindLeadTimeViolation, scheduling.KindInvalidDuration, scheduling.KindProviderUnavailable,
		scheduling.KindOutsideAvailability, scheduling.KindLeaveInPast, scheduling.KindLeaveTooLong:
		return http.StatusUnprocessableEntity
	case scheduling.KindTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err with its mapped status. Internal failures were
// already logged by the service and are reported without detail.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	kind := scheduling.KindOf(err)
	status := StatusFor(kind)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		kind = scheduling.KindInternal
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: scheduling.PublicMessage(err)}})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Kind: scheduling.KindInvalidArgument, Message: message}})
}

// decodeJSON reads a single JSON object from the request body. An empty
// body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
