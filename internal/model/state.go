package model

import (
	"encoding/json"
	"fmt"
)

// State represents the learning stage of a card.
type State int

const (
	New        State = iota // Never reviewed.
	Learning                // In initial learning steps.
	Review                  // Entered the long-term review cycle.
	Relearning              // Forgotten, relearning.
)

var stateNames = [...]string{New: "New", Learning: "Learning", Review: "Review", Relearning: "Relearning"}

// Compile-time interface checks.
var (
	_ fmt.Stringer     = State(0)
	_ json.Marshaler   = State(0)
	_ json.Unmarshaler = (*State)(nil)
)

// IsValid reports whether s is a valid state (New through Relearning).
func (s State) IsValid() bool {
	return s >= New && s <= Relearning
}

// String returns the name of the state ("New", "Learning", "Review", "Relearning").
// For invalid values it returns "State(n)".
func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalJSON implements json.Marshaler. State serializes as its wire
// integer (0-3); the enum exists only inside the process.
func (s State) MarshalJSON() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return json.Marshal(int(s))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON integer 0-3.
func (s *State) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidState, data)
	}
	v := State(n)
	if !v.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, n)
	}
	*s = v
	return nil
}
