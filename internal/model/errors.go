package model

import "errors"

// Domain error taxonomy. Single-entity operations wrap these with detail via
// fmt.Errorf("%w: ...") so callers can branch on errors.Is.
var (
	ErrPoolNotFound       = errors.New("pool not found")
	ErrInvestmentNotFound = errors.New("investment not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrValidation         = errors.New("validation failed")
)
