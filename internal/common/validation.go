package common

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is the sentinel for caller-fixable input errors. Use
// errors.Is against it; the concrete value is usually a *ValidationError.
var ErrValidation = errors.New("validation error")

// ValidationError aggregates every missing required field of a request into
// a single error instead of failing on the first blank one.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: required fields missing: %s", strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RequireFields collects the names whose values are blank and returns an
// aggregated *ValidationError, or nil when everything is present. Pairs are
// (name, value) in order.
func RequireFields(pairs ...string) error {
	if len(pairs)%2 != 0 {
		return fmt.Errorf("RequireFields: odd number of arguments")
	}
	var missing []string
	for i := 0; i < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Missing: missing}
}
