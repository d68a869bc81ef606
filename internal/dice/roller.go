package dice

//go:generate mockgen -destination=mock/mock_roller.go -package=mockdice -source=roller.go

// Roller provides an interface for rolling dice
// This allows us to inject different implementations for testing
type Roller interface {
	// Roll performs one draw described by the input
	Roll(input *RollInput) (*RollResult, error)
}

// RollExpression parses and rolls "NdM(+/-K)" with the given roller.
func RollExpression(r Roller, expr string) (*RollResult, error) {
	input, err := ParseExpression(expr)
	if err != nil {
		return nil, err
	}
	return r.Roll(input)
}

// D20 builds a single d20 draw input.
func D20(modifier int) *RollInput {
	return &RollInput{Count: 1, Sides: 20, Modifier: modifier}
}
