package mockdice

import (
	"fmt"
	"sync"

	"github.com/labyrinthia/engine/internal/dice"
)

// ManualMockRoller implements dice.Roller for testing with predetermined results
type ManualMockRoller struct {
	mu        sync.Mutex
	rolls     []int
	rollIndex int
}

// NewManualMockRoller creates a new mock dice roller
func NewManualMockRoller() *ManualMockRoller {
	return &ManualMockRoller{
		rolls: []int{},
	}
}

// SetNextRoll sets the next roll result
func (m *ManualMockRoller) SetNextRoll(roll int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls = append(m.rolls, roll)
}

// SetRolls sets multiple roll results
func (m *ManualMockRoller) SetRolls(rolls []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls = rolls
	m.rollIndex = 0
}

// Reset clears all rolls and resets the index
func (m *ManualMockRoller) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls = []int{}
	m.rollIndex = 0
}

// getNextRoll returns the next predetermined roll
func (m *ManualMockRoller) getNextRoll() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rollIndex >= len(m.rolls) {
		return 0, fmt.Errorf("no more predetermined rolls available (used %d of %d)", m.rollIndex, len(m.rolls))
	}

	roll := m.rolls[m.rollIndex]
	m.rollIndex++
	return roll, nil
}

// Roll implements dice.Roller using the predetermined sequence. The
// sequence feeds raw die faces; advantage/disadvantage consume two,
// reroll-ones consumes an extra face per rerolled die.
func (m *ManualMockRoller) Roll(input *dice.RollInput) (*dice.RollResult, error) {
	if input == nil {
		return nil, fmt.Errorf("roll input cannot be nil")
	}
	if input.Count < 1 || input.Sides < 1 {
		return nil, fmt.Errorf("invalid roll input %dd%d", input.Count, input.Sides)
	}

	result := &dice.RollResult{Modifier: input.Modifier}

	adv, dis := input.Advantage, input.Disadvantage
	if adv && dis {
		adv, dis = false, false
	}
	if (adv || dis) && !(input.Count == 1 && input.Sides == 20) {
		adv, dis = false, false
	}

	next := func() (int, error) {
		v, err := m.getNextRoll()
		if err != nil {
			return 0, err
		}
		if v < 1 || v > input.Sides {
			return 0, fmt.Errorf("invalid roll %d for d%d", v, input.Sides)
		}
		if input.RerollOnes && v == 1 && input.Sides > 1 {
			return m.getNextRoll()
		}
		return v, nil
	}

	if adv || dis {
		first, err := next()
		if err != nil {
			return nil, err
		}
		second, err := next()
		if err != nil {
			return nil, err
		}
		picked := first
		if adv && second > first {
			picked = second
		}
		if dis && second < first {
			picked = second
		}
		result.Rolls = []int{first, second}
		result.Picked = []int{picked}
	} else {
		rolls := make([]int, input.Count)
		for i := range rolls {
			v, err := next()
			if err != nil {
				return nil, err
			}
			rolls[i] = v
		}
		result.Rolls = rolls
		picked := append([]int(nil), rolls...)
		if input.DropLowest && len(picked) > 1 {
			lowIdx := 0
			for i, v := range picked {
				if v < picked[lowIdx] {
					lowIdx = i
				}
			}
			picked = append(picked[:lowIdx], picked[lowIdx+1:]...)
		}
		result.Picked = picked
	}

	result.Total = result.PickedSum() + input.Modifier
	if input.Sides == 20 && len(result.Picked) == 1 {
		result.IsCrit20 = result.Picked[0] == 20
		result.IsCrit1 = result.Picked[0] == 1
	}
	return result, nil
}
