package container

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfiguration is returned for registrations that can never
	// work: self-aliases, alias cycles, unsupported binding types and
	// malformed callables or middleware names.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEntryNotFound is returned by Get when the id is not known to the
	// container at all.
	ErrEntryNotFound = errors.New("entry not found")
)

// BindingResolutionError reports an abstract that could not be built.
//
//	// Laravel: Illuminate\Contracts\Container\BindingResolutionException
type BindingResolutionError struct {
	Abstract string
	Stack    []string
	Message  string
	Err      error
}

func (e *BindingResolutionError) Error() string {
	msg := e.Message
	if len(e.Stack) > 0 {
		msg += " while building [" + strings.Join(e.Stack, ", ") + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "container: " + msg
}

func (e *BindingResolutionError) Unwrap() error { return e.Err }

// CircularDependencyError is returned when an abstract is requested again
// while it is still on the build stack.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("container: circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("container: %w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
