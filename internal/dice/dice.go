package dice

import (
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RollInput describes one dice draw.
type RollInput struct {
	Count    int
	Sides    int
	Modifier int

	// Advantage and Disadvantage only apply to a single d20; for any
	// other draw they are ignored with a warning in the breakdown.
	Advantage    bool
	Disadvantage bool

	// RerollOnes rerolls each die showing 1 once, keeping the new value.
	RerollOnes bool

	// DropLowest drops the single lowest die when rolling 2+.
	DropLowest bool
}

// RollResult is the outcome of one draw.
type RollResult struct {
	// Rolls lists every die rolled, including both advantage rolls
	// and pre-drop dice.
	Rolls []int

	// Picked lists the dice that count toward the total.
	Picked []int

	Modifier int
	Total    int

	// IsCrit20/IsCrit1 are set only when a single d20 decides the draw.
	IsCrit20 bool
	IsCrit1  bool

	// Breakdown holds human-readable notes, including warnings.
	Breakdown []string
}

func (r *RollResult) note(line string) {
	r.Breakdown = append(r.Breakdown, line)
}

// PickedSum totals the counted dice without the modifier.
func (r *RollResult) PickedSum() int {
	sum := 0
	for _, v := range r.Picked {
		sum += v
	}
	return sum
}

// rollWith runs the draw against an injected intn so random and seeded
// rollers share one code path.
func rollWith(intn func(int) int, input *RollInput) (*RollResult, error) {
	if input == nil {
		return nil, errors.New("roll input cannot be nil")
	}
	if input.Count < 1 {
		return nil, fmt.Errorf("invalid dice count %d", input.Count)
	}
	if input.Sides < 1 {
		return nil, fmt.Errorf("invalid dice sides %d", input.Sides)
	}

	result := &RollResult{Modifier: input.Modifier}

	adv, dis := input.Advantage, input.Disadvantage
	if adv && dis {
		result.note("advantage and disadvantage cancel")
		adv, dis = false, false
	}
	if (adv || dis) && !(input.Count == 1 && input.Sides == 20) {
		result.note(fmt.Sprintf("warning: advantage/disadvantage ignored for %dd%d", input.Count, input.Sides))
		adv, dis = false, false
	}

	rollOnce := func() int {
		v := intn(input.Sides) + 1
		if input.RerollOnes && v == 1 && input.Sides > 1 {
			rerolled := intn(input.Sides) + 1
			result.note(fmt.Sprintf("rerolled 1 -> %d", rerolled))
			v = rerolled
		}
		return v
	}

	if adv || dis {
		first, second := rollOnce(), rollOnce()
		picked := first
		if adv {
			if second > first {
				picked = second
			}
			result.note(fmt.Sprintf("advantage: kept %d of [%d %d]", picked, first, second))
		} else {
			if second < first {
				picked = second
			}
			result.note(fmt.Sprintf("disadvantage: kept %d of [%d %d]", picked, first, second))
		}
		result.Rolls = []int{first, second}
		result.Picked = []int{picked}
	} else {
		rolls := make([]int, input.Count)
		for i := range rolls {
			rolls[i] = rollOnce()
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
			result.note(fmt.Sprintf("dropped lowest %d", picked[lowIdx]))
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

// ParseExpression parses "NdM", "NdM+K", or "NdM-K".
func ParseExpression(expr string) (*RollInput, error) {
	s := strings.ToLower(strings.TrimSpace(expr))

	modifier := 0
	dicePart := s
	if idx := strings.IndexAny(s, "+-"); idx > 0 {
		bonus, err := strconv.Atoi(s[idx:])
		if err != nil {
			return nil, fmt.Errorf("invalid dice expression %q", expr)
		}
		modifier = bonus
		dicePart = s[:idx]
	}

	parts := strings.Split(dicePart, "d")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid dice expression %q", expr)
	}

	count, err := strconv.Atoi(parts[0])
	if err != nil || count < 1 {
		return nil, fmt.Errorf("invalid dice expression %q", expr)
	}
	sides, err := strconv.Atoi(parts[1])
	if err != nil || sides < 1 {
		return nil, fmt.Errorf("invalid dice expression %q", expr)
	}

	return &RollInput{Count: count, Sides: sides, Modifier: modifier}, nil
}

// SeedFromString derives a stable int64 seed from an identity string,
// e.g. "attack|{gameID}|{turn}|{attackerID}|{targetID}".
func SeedFromString(s string) int64 {
	sum := sha1.Sum([]byte(s))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}
