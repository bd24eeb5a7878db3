package model

import "errors"

// Sentinel errors for the model package.
// Use errors.Is to check: errors.Is(err, model.ErrInvalidRating)
var (
	ErrInvalidRating = errors.New("model: invalid rating")
	ErrInvalidState  = errors.New("model: invalid state")
)
