package model

import "strings"

// Movement is the canonical cell movement category.
type Movement string

const (
	MovementNone       Movement = "None"
	MovementRandom     Movement = "Random"
	MovementDirected   Movement = "Directed"
	MovementCollective Movement = "Collective"
	MovementFlow       Movement = "Flow"
)

// Valid returns true for the five canonical categories.
func (m Movement) Valid() bool {
	switch m {
	case MovementNone, MovementRandom, MovementDirected, MovementCollective, MovementFlow:
		return true
	default:
		return false
	}
}

// MapMovement maps a free-form movement category onto the canonical set.
// Matching is case-insensitive; unrecognized input maps to Random.
func MapMovement(raw string) Movement {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "static", "none":
		return MovementNone
	case "random":
		return MovementRandom
	case "directed":
		return MovementDirected
	case "collective":
		return MovementCollective
	case "flow":
		return MovementFlow
	default:
		return MovementRandom
	}
}
