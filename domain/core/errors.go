package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound         = errors.New("resource not found")
	ErrAnalysisNotFound = fmt.Errorf("%w: analysis", ErrNotFound)

	// Data quality errors
	ErrValidationFailed = errors.New("session failed data quality validation")
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrNonMonotonicTime = errors.New("channel timestamps not strictly increasing")
	ErrUnknownProtocol  = errors.New("unknown test protocol")
	ErrMissingChannel   = errors.New("required channel missing from session")

	// Model fitting errors
	ErrInsufficientEfforts = errors.New("too few maximal efforts for critical power fit")
	ErrDegenerateFit       = errors.New("fit produced physically invalid parameters")
)

// Error constructors with context
func NewInsufficientDataError(channel string, have, want int) error {
	return fmt.Errorf("%w: channel %s has %d samples, need %d", ErrInsufficientData, channel, have, want)
}

func NewInsufficientEffortsError(have, want int) error {
	return fmt.Errorf("%w: have %d distinct durations, need %d", ErrInsufficientEfforts, have, want)
}

func NewDegenerateFitError(cp, wPrime float64) error {
	return fmt.Errorf("%w: CP=%.2f W' = %.2f", ErrDegenerateFit, cp, wPrime)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrNonMonotonicTime) ||
		errors.Is(err, ErrMissingChannel)
}

func IsFitError(err error) bool {
	return errors.Is(err, ErrInsufficientEfforts) ||
		errors.Is(err, ErrDegenerateFit)
}
