package dice

import (
	"math/rand"
)

// randomRoller implements Roller over the shared math/rand source
type randomRoller struct{}

// NewRandomRoller creates a new random dice roller
func NewRandomRoller() Roller {
	return &randomRoller{}
}

// Roll implements Roller.Roll
func (r *randomRoller) Roll(input *RollInput) (*RollResult, error) {
	return rollWith(rand.Intn, input)
}
