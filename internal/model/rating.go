package model

import (
	"encoding/json"
	"fmt"
)

// Rating represents the user's assessment of recall quality.
type Rating int

const (
	Again Rating = iota + 1 // Complete failure to recall.
	Hard                    // Recalled with significant difficulty.
	Good                    // Recalled with some effort.
	Easy                    // Recalled effortlessly.
)

var ratingNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// Compile-time interface checks.
var (
	_ fmt.Stringer     = Rating(0)
	_ json.Marshaler   = Rating(0)
	_ json.Unmarshaler = (*Rating)(nil)
)

// IsValid reports whether r is a valid rating (Again through Easy).
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

// String returns the name of the rating ("Again", "Hard", "Good", "Easy").
// For invalid values it returns "Rating(n)".
func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// MarshalJSON implements json.Marshaler. Rating serializes as its wire
// integer (1-4).
func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return json.Marshal(int(r))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON integer 1-4.
func (r *Rating) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	v := Rating(n)
	if !v.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidRating, n)
	}
	*r = v
	return nil
}
