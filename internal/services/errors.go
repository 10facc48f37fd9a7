package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external service error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// failureKinds is checked in order; the first marker found in the chain wins.
var failureKinds = []struct {
	marker error
	label  string
	status int
}{
	{ErrValidation, "validation", http.StatusBadRequest},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrConflict, "conflict", http.StatusConflict},
	{ErrTimeout, "timeout", http.StatusGatewayTimeout},
	{ErrConfiguration, "configuration", http.StatusInternalServerError},
	{ErrExternalTool, "external", http.StatusBadGateway},
}

// Wrap tags err with marker and prefixes it with "component: operation: message".
// A nil marker means ErrTransient.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var parts []string
	for _, part := range []string{component, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "service failure"
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind returns the short label used in API error bodies and
// notifications. Unmarked errors are "transient".
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range failureKinds {
		if errors.Is(err, k.marker) {
			return k.label
		}
	}
	return "transient"
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	for _, k := range failureKinds {
		if errors.Is(err, k.marker) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
