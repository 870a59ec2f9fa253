package diffusion

import "errors"

var (
	// ErrShapeMismatch reports batch/timestep/condition dimensions that
	// disagree across one call. Fatal to the operation, never retried.
	ErrShapeMismatch = errors.New("diffusion: shape mismatch")

	// ErrNumericInstability reports NaN/Inf in a loss or sampled output
	// that survived the schedule clipping and epsilon floors.
	ErrNumericInstability = errors.New("diffusion: numeric instability")
)
