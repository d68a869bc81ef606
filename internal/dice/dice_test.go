package dice_test

import (
	"testing"

	"github.com/labyrinthia/engine/internal/dice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpression(t *testing.T) {
	tests := []struct {
		expr    string
		want    dice.RollInput
		wantErr bool
	}{
		{expr: "2d6", want: dice.RollInput{Count: 2, Sides: 6}},
		{expr: "1d20+5", want: dice.RollInput{Count: 1, Sides: 20, Modifier: 5}},
		{expr: "3d8-2", want: dice.RollInput{Count: 3, Sides: 8, Modifier: -2}},
		{expr: " 2D6+1 ", want: dice.RollInput{Count: 2, Sides: 6, Modifier: 1}},
		{expr: "d20", wantErr: true},
		{expr: "2d", wantErr: true},
		{expr: "2x6", wantErr: true},
		{expr: "0d6", wantErr: true},
		{expr: "2d0", wantErr: true},
		{expr: "2d6+", wantErr: true},
		{expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			input, err := dice.ParseExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *input)
		})
	}
}

func TestRollExpression(t *testing.T) {
	result, err := dice.RollExpression(dice.NewSeeded(5), "2d6+3")

	require.NoError(t, err)
	assert.Len(t, result.Rolls, 2)
	assert.Equal(t, 3, result.Modifier)
	assert.Equal(t, result.PickedSum()+3, result.Total)
}

func TestRollExpressionBadInput(t *testing.T) {
	_, err := dice.RollExpression(dice.NewSeeded(5), "banana")
	assert.Error(t, err)
}
