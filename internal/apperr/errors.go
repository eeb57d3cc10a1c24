package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNoKeywords   = errors.New("no keywords supplied")
	ErrInvalidInput = errors.New("invalid input")
)
