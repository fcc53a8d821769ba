package core

import "errors"

var (
	// ErrEmptyInput is returned when a run is requested without layers.
	ErrEmptyInput = errors.New("no layers to stack")
	// ErrDimensionMismatch is returned when layers differ in size or layout.
	ErrDimensionMismatch = errors.New("layers differ in dimensions")
	// ErrUnsupportedParameter is returned for parameter values that cannot be used.
	ErrUnsupportedParameter = errors.New("unsupported parameter")
	// ErrBusy is returned when a run is already in flight on the pipeline.
	ErrBusy = errors.New("pipeline is busy")
)
