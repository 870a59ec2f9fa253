package forecast

import "errors"

var (
	// ErrInsufficientData is returned when fewer bars are supplied than
	// the window construction or inference context requires.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelNotTrained is returned by the diffusion path when no
	// training epoch has completed and no simulation fallback is wired.
	ErrModelNotTrained = errors.New("model not trained")
)
