package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrUnknownVariant   = errors.New("unknown variant")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrUnknownVerdict   = errors.New("unknown verdict")
)
