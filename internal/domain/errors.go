package domain

import "errors"

var (
	// ErrInvalidScenario is returned for scenarios with negative amounts or
	// period, or a non-positive horizon.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrInsufficientData is returned when the price history is too short for
	// the horizon, or a result has too few values to summarize.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDataIntegrity is returned when a price used as a divisor is zero or
	// negative, or a series is not in ascending date order.
	ErrDataIntegrity = errors.New("data integrity error")
)
