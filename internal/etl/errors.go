package etl

// errors.go defines the fatal error taxonomy of the core. All three abort
// the run; recoverable conditions (dropped rows, missing foreign keys) are
// reported through the Reporter instead.

import "fmt"

// NoValidDatesError is returned when the date dimension cannot be derived
// because every observed date value is absent.
type NoValidDatesError struct {
	Column string
}

func (e *NoValidDatesError) Error() string {
	return fmt.Sprintf("no valid dates found in column %q to build the date dimension", e.Column)
}

// ValidationThresholdExceededError is returned when the validation drop rate
// strictly exceeds the configured ceiling. Nothing is persisted in that case.
type ValidationThresholdExceededError struct {
	Observed float64
	Allowed  float64
}

func (e *ValidationThresholdExceededError) Error() string {
	return fmt.Sprintf("validation drop rate %.2f%% exceeds max_error_rate %.2f%%",
		e.Observed*100, e.Allowed*100)
}

// UnsupportedDimensionError indicates a programmer or configuration error:
// an unknown dimension kind was requested.
type UnsupportedDimensionError struct {
	Kind string
}

func (e *UnsupportedDimensionError) Error() string {
	return fmt.Sprintf("unsupported dimension %q: must be %q, %q or %q",
		e.Kind, DimensionDate, DimensionItem, DimensionBuyer)
}
