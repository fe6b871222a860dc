package chart

import "errors"

var (
	// ErrInvalidBoxParam rejects a non-positive box size parameter for
	// modes that use one.
	ErrInvalidBoxParam = errors.New("chart: box size parameter must be positive")

	// ErrInvalidReversal rejects a reversal count below one box.
	ErrInvalidReversal = errors.New("chart: reversal count must be at least 1")

	// ErrColumnOutOfRange is returned by column queries past the end of
	// the chart.
	ErrColumnOutOfRange = errors.New("chart: column index out of range")

	// ErrUnknownBoxSizeMode and ErrUnknownConstruction reject
	// unrecognized mode strings from configuration.
	ErrUnknownBoxSizeMode  = errors.New("chart: unknown box size mode")
	ErrUnknownConstruction = errors.New("chart: unknown construction mode")
)
