package selection

import "errors"

// Sentinel kinds for selection errors.
var (
	ErrEmptyPool = errors.New("empty candidate pool")
	ErrBadDraw   = errors.New("random source returned out-of-range value")
)
