package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record exists for a location.
	ErrNotFound = errors.New("weather record not found")

	// ErrDuplicate is returned by stores when a record for the location already exists.
	ErrDuplicate = errors.New("weather record already exists for location")

	// ErrSimulatedFailure is the injected fault raised on the forecast path.
	ErrSimulatedFailure = errors.New("simulated failure")
)

// ValidationError reports malformed client input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StoreError wraps a persistence failure with the facade operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store operations, used as StoreError.Op and as metric labels.
const (
	OpCreate        = "create"
	OpGetAll        = "get_all"
	OpSearch        = "search"
	OpGetByLocation = "get_by_location"
	OpDelete        = "delete"
	OpForecast      = "forecast"
	OpPurge         = "purge"
)

func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
