// Package http provides the JSON API server and its handlers.
//
// This file implements the response builder: every body is an envelope of
// the form {"status":"success","data":...} or {"status":"error","message":...}.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hisab/internal/auth"
	"hisab/internal/core"
	"hisab/internal/ledger"
	"hisab/internal/log"
	"hisab/internal/services"
	"hisab/internal/storage"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

var errBadRequest = errors.New("bad request")

// Envelope is the body of every API response.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building API responses.
type JSONResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewJSONResponse creates a success response with status 200.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		envelope:   Envelope{Status: statusSuccess},
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.envelope.Data = data
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.envelope); err != nil {
		slog.Error("Failed to encode response", "component", log.ComponentHTTP, "error", err)
	}
}

// SuccessResponse wraps data in a success envelope.
func SuccessResponse(data any) *JSONResponseBuilder {
	return NewJSONResponse().Data(data)
}

// ErrorResponse creates an error envelope with the given status.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	b := NewJSONResponse().Status(statusCode)
	b.envelope = Envelope{Status: statusError, Message: message}
	return b
}

// MethodNotAllowedError creates a 405 response listing the allowed methods.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}

// UnauthorizedError is the single response for every authentication failure.
func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, auth.ErrNotAuthorized.Error())
}

var (
	conflictErrors = []error{
		ledger.ErrRoomOccupied,
		ledger.ErrRoomHasOccupant,
		ledger.ErrMemberHasPayouts,
		ledger.ErrRenterHasPayments,
		ledger.ErrRenterNotEligible,
	}
	validationErrors = []error{
		services.ErrInvalidInput,
		core.ErrInvalidDate,
		core.ErrEmptyName,
		core.ErrEmptyID,
		core.ErrEmptyRoomNumber,
		core.ErrInvalidAmount,
		core.ErrMissingDate,
		core.ErrMissingReference,
		core.ErrInvalidStatus,
		core.ErrInvalidBillType,
		core.ErrInvalidCategory,
		core.ErrEmptyHistory,
		core.ErrTextTooLong,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify maps an error to its status code and log error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrNotAuthorized):
		return http.StatusUnauthorized, log.ErrorTypeAuth
	case errors.Is(err, services.ErrReadOnly):
		return http.StatusForbidden, log.ErrorTypeAuth
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case isAny(err, conflictErrors):
		return http.StatusConflict, log.ErrorTypeConflict
	case isAny(err, validationErrors):
		return http.StatusUnprocessableEntity, log.ErrorTypeValidation
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal
	}
}

// FromError builds the error response for err. Internal errors are not
// echoed to the client.
func FromError(err error) *JSONResponseBuilder {
	code, _ := classify(err)
	switch code {
	case http.StatusUnauthorized:
		return UnauthorizedError()
	case http.StatusInternalServerError:
		return ErrorResponse(code, "internal error")
	default:
		return ErrorResponse(code, err.Error())
	}
}
