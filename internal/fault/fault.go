package fault

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation marks malformed or missing input, rejected before any
	// state mutation.
	ErrValidation = errors.New("validation error")
	// ErrPrecondition marks an entity that is not in the state an operation
	// requires, including duplicate concurrent starts.
	ErrPrecondition = errors.New("precondition error")
	// ErrExecution marks a failure inside a running task. The owning entity
	// transitions to its failed terminal state and exactly one failure event
	// is broadcast.
	ErrExecution = errors.New("execution error")
	// ErrDelivery marks a failure delivering to one observer connection. It is
	// never surfaced to the caller of a broadcast.
	ErrDelivery = errors.New("delivery error")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error to the status code the command surface
// should return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPrecondition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
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
		return "coordination failure"
	}
	return strings.Join(parts, ": ")
}
