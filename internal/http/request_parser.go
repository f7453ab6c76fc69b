// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hisab/internal/core"
)

const defaultMaxBodyBytes = 1 << 20

// ActionRequest is the body of POST /api/ledger.
type ActionRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// ParseMonthParam reads ?month=YYYY-MM, falling back to the month of today.
func ParseMonthParam(r *http.Request, today core.Date) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return today.StartOfMonth(), nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: month: %w", errBadRequest, err)
	}
	return m, nil
}

// DecodeJSON reads at most maxBytes of JSON into v, rejecting unknown
// trailing content.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxBytes)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: malformed JSON: %w", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// decodeData unmarshals an action payload. A missing payload decodes as {}.
func decodeData(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		// Field type and date errors are the caller's fault too.
		if errors.Is(err, core.ErrInvalidDate) {
			return err
		}
		return fmt.Errorf("%w: invalid data: %w", errBadRequest, err)
	}
	return nil
}

// parseOptionalMonth returns today's month for an empty value.
func parseOptionalMonth(v string, today core.Date) (core.Date, error) {
	if strings.TrimSpace(v) == "" {
		return today.StartOfMonth(), nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("month: %w", err)
	}
	return m, nil
}

// RequireMethod returns a 405 response unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *JSONResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// sanitizeInput removes control characters except tab and newlines, then
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
