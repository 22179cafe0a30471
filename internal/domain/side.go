package domain

// OutcomeSide identifies one of the two outcomes of a binary market.
type OutcomeSide string

const (
	SideUp   OutcomeSide = "up"
	SideDown OutcomeSide = "down"
)

// Opposite returns the other outcome side.
func (s OutcomeSide) Opposite() OutcomeSide {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// Valid reports whether the side is one of the two known outcomes.
func (s OutcomeSide) Valid() bool {
	return s == SideUp || s == SideDown
}
