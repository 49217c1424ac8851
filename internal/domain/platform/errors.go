package platform

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("platform: resource not found")
	ErrRequestFailed   = errors.New("platform: request failed")
	ErrInvalidResponse = errors.New("platform: invalid response")
	ErrUnsupported     = errors.New("platform: operation not supported by API version")
)

// UserError is a validation error returned inside a successful response.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors is returned when a mutation reports user errors. It is terminal
// for the step that issued it.
type UserErrors struct {
	Operation string
	Errors    []UserError
}

// Error implements error.
func (e *UserErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		if len(ue.Field) > 0 {
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
			continue
		}
		msgs = append(msgs, ue.Message)
	}
	return fmt.Sprintf("platform: %s user errors: %s", e.Operation, strings.Join(msgs, "; "))
}

// IsUserError reports whether err carries payload-embedded user errors.
func IsUserError(err error) bool {
	var ue *UserErrors
	return errors.As(err, &ue)
}
