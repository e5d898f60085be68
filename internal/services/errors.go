package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

var markers = []error{
	ErrNotFound,
	ErrValidation,
	ErrConfiguration,
	ErrConflict,
	ErrUnauthorized,
	ErrTimeout,
	ErrExternalTool,
	ErrTransient,
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is the classified view of an error.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details classifies err by marker and returns its message with the marker
// prefix removed, suitable for display to end users.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: strings.TrimSpace(err.Error())}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			details.Kind = kindFor(marker)
			details.Message = strings.TrimSpace(strings.TrimPrefix(details.Message, marker.Error()+":"))
			break
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		details.Kind = "timeout"
	}
	return details
}

// HTTPStatus maps an error to the HTTP status code API handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrExternalTool):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindFor(marker error) string {
	switch marker {
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation"
	case ErrConfiguration:
		return "configuration"
	case ErrConflict:
		return "conflict"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrTimeout:
		return "timeout"
	case ErrExternalTool:
		return "external"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// MarkerForKind returns the sentinel error for a kind produced by Details.
// Unknown kinds map to ErrTransient.
func MarkerForKind(kind string) error {
	for _, marker := range markers {
		if kindFor(marker) == kind {
			return marker
		}
	}
	return ErrTransient
}
