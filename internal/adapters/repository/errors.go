package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrTxDone       = errors.New("transaction already finished")
	ErrDuplicateRow = errors.New("daily selection already exists")
	ErrInvalidInput = errors.New("invalid repository input")
)
