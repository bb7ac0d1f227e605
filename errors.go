package orbprop

import (
	"errors"
	"fmt"

	"github.com/ChristopherRabotin/orbprop/integrator"
)

var (
	// ErrConfig indicates missing or invalid scenario data, reported before any stepping.
	ErrConfig = errors.New("orbprop: invalid configuration")

	// ErrDomain indicates a model was queried outside of its validity domain.
	ErrDomain = errors.New("orbprop: outside model validity domain")

	// ErrNumericalInstability indicates the integrator could not meet its tolerance.
	ErrNumericalInstability = integrator.ErrNumericalInstability

	// ErrRootIsolation indicates an event crossing could not be located.
	ErrRootIsolation = errors.New("orbprop: event root isolation did not converge")

	// ErrOutOfRange indicates an ephemeris query outside of its bounds.
	ErrOutOfRange = errors.New("orbprop: epoch outside ephemeris bounds")

	// ErrInvalidState indicates an operation not allowed in the propagator's current status.
	ErrInvalidState = errors.New("orbprop: invalid propagator status")
)

// ConfigError wraps a configuration problem with the offending field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Err)
}

// Unwrap exposes both ErrConfig and the cause.
func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}

func configError(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// DomainError reports a model evaluated outside of its valid range.
type DomainError struct {
	Model    string
	Quantity string
	Value    float64
	Min, Max float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s=%g outside [%g, %g]", e.Model, e.Quantity, e.Value, e.Min, e.Max)
}

func (e *DomainError) Unwrap() error {
	return ErrDomain
}

// PropagationError carries the context of a failed run.
type PropagationError struct {
	Step    int
	Elapsed float64
	State   State // last accepted state
	Wrapped error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation failed at step %d (%s, +%.3fs): %s", e.Step, e.State.Epoch, e.Elapsed, e.Wrapped)
}

func (e *PropagationError) Unwrap() error {
	return e.Wrapped
}
