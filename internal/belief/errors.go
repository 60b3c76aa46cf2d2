package belief

import "errors"

// Kernel failures. All are surfaced as wrapped sentinels so callers can
// match with errors.Is; nothing is clamped or swallowed.
var (
	ErrInvalidFrame       = errors.New("invalid frame of discernment")
	ErrInvalidMass        = errors.New("mass value out of range [0,1]")
	ErrUnnormalizedMass   = errors.New("masses do not sum to 1")
	ErrInvalidFocalSet    = errors.New("invalid focal set")
	ErrFrameMismatch      = errors.New("frames of discernment differ")
	ErrTotalConflict      = errors.New("total conflict between sources")
	ErrNormalizationDrift = errors.New("combined masses drifted from 1")
	ErrEmptyEvidenceSet   = errors.New("no belief masses to combine")
	ErrUnknownRule        = errors.New("unknown fusion rule")
)
