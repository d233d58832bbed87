package models

// TimeControl is an (initial time, per-move increment) pair. Two queued
// players must agree on it exactly to be paired.
type TimeControl struct {
	InitialSeconds   int `json:"initialSeconds"`
	IncrementSeconds int `json:"incrementSeconds"`
}

// DefaultTimeControl is used when a client joins the queue without
// specifying one (10+5 rapid).
var DefaultTimeControl = TimeControl{InitialSeconds: 600, IncrementSeconds: 5}

// Equal reports whether both fields match exactly.
func (tc TimeControl) Equal(other TimeControl) bool {
	return tc.InitialSeconds == other.InitialSeconds && tc.IncrementSeconds == other.IncrementSeconds
}
