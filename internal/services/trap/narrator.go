package trap

import (
	"context"
	"fmt"

	"github.com/labyrinthia/engine/internal/entities"
)

// localNarrator is the no-oracle fallback: short fixed lines keyed by
// outcome and trap type.
type localNarrator struct{}

func (localNarrator) TrapNarrative(_ context.Context, gameState *entities.GameState, result *Result) (string, error) {
	name := "You"
	if gameState != nil && gameState.Player != nil {
		name = gameState.Player.Name
	}
	trap := result.Trap

	switch result.Outcome {
	case OutcomeDisarmed:
		return fmt.Sprintf("%s eases the mechanism of the %s apart; it clicks once and falls silent.", name, trap.Name), nil
	case OutcomeDisarmFailed:
		return fmt.Sprintf("The %s resists %s's careful prodding. It is still armed.", trap.Name, name), nil
	case OutcomeAvoided:
		return fmt.Sprintf("%s twists away at the last instant as the %s snaps shut on empty air.", name, trap.Name), nil
	case OutcomeTriggered:
		switch trap.TrapType {
		case TrapDamage:
			return fmt.Sprintf("The %s springs. Pain blooms as %s staggers back, %d %s damage the price of a careless step.",
				trap.Name, name, result.Damage, trap.DamageType), nil
		case TrapDebuff:
			return fmt.Sprintf("The %s hisses open and something foul clings to %s.", trap.Name, name), nil
		case TrapRestraint:
			return fmt.Sprintf("The %s snaps around %s's legs and holds fast.", trap.Name, name), nil
		case TrapTeleport:
			return fmt.Sprintf("The floor glyph flares white. When the light fades, %s stands somewhere else entirely.", name), nil
		case TrapAlarm:
			return fmt.Sprintf("A shrill chime echoes down the corridors. Somewhere in the dark, something answers the %s.", trap.Name), nil
		}
	}
	return fmt.Sprintf("%s triggers the %s.", name, trap.Name), nil
}
