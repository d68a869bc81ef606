package combat

//go:generate mockgen -destination=mock/mock_service.go -package=mockcombat -source=service.go

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/dice"
	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/rolls"
)

// Service evaluates attacks through the fixed mitigation pipeline.
type Service interface {
	// EvaluateAttack runs one attack. In local authority mode the
	// result is a prediction and the defender is left untouched; in
	// hybrid/server modes hp, shield, and temporary hp changes are
	// applied to the defender.
	EvaluateAttack(ctx context.Context, input *EvaluateAttackInput) (*Result, error)

	// Snapshot reports evaluation telemetry for the release gate.
	Snapshot() *TelemetrySnapshot
}

// DamageComponent is one typed damage packet inside an attack.
type DamageComponent struct {
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Penetration float64 `json:"penetration,omitempty"`
	TrueDamage  bool    `json:"true_damage,omitempty"`
}

// EvaluateAttackInput describes one attack evaluation.
type EvaluateAttackInput struct {
	Attacker *entities.Entity
	Defender *entities.Entity

	AttackType rolls.AttackType

	// BaseDamage <= 0 derives damage from the attacker (monster
	// attack damage, or 1 + str modifier unarmed).
	BaseDamage  float64
	DamageType  string
	CanCritical bool

	AttackBonus   float64
	DamageBonus   float64
	MinimumDamage float64 // <= 0 uses the rule default

	Advantage    bool
	Disadvantage bool
	Proficient   bool

	// External overrides; honored only when the rule set enables
	// debug overrides, and sanitized regardless.
	DamageComponents []*DamageComponent
	Penetration      float64
	TrueDamage       bool

	Rules         *entities.CombatRules
	AuthorityMode string

	// DeterministicSeed replays the attack on an isolated RNG.
	DeterministicSeed *int64
}

// Result is the full evaluation outcome.
type Result struct {
	Hit         bool               `json:"hit"`
	CriticalHit bool               `json:"critical_hit"`
	AttackRoll  *rolls.CheckResult `json:"attack_roll,omitempty"`

	Components  []*DamageComponent `json:"components,omitempty"`
	FinalDamage float64            `json:"final_damage"`

	DefenderHPBefore int     `json:"defender_hp_before"`
	DefenderHPAfter  int     `json:"defender_hp_after"`
	ShieldAbsorbed   float64 `json:"shield_absorbed,omitempty"`
	TempHPAbsorbed   float64 `json:"temp_hp_absorbed,omitempty"`
	Death            bool    `json:"death"`
	ExperienceAward  int     `json:"experience_award,omitempty"`

	// Applied reports whether defender state was mutated (hybrid and
	// server authority) or merely predicted (local).
	Applied bool `json:"applied"`

	Breakdown []entities.BreakdownRow `json:"breakdown"`
	Events    []string                `json:"events,omitempty"`
	Warnings  []string                `json:"warnings,omitempty"`
}

// Projection reduces the result to the replay-comparable core.
func (r *Result) Projection() *entities.CombatProjection {
	return &entities.CombatProjection{
		Hit:    r.Hit,
		Damage: r.FinalDamage,
		Death:  r.Death,
		Exp:    r.ExperienceAward,
	}
}

type service struct {
	roller    dice.Roller
	log       *zap.Logger
	telemetry *telemetry
}

// ServiceConfig holds configuration for the combat service.
type ServiceConfig struct {
	Roller dice.Roller
	Logger *zap.Logger
}

// NewService creates a combat evaluation service.
func NewService(cfg *ServiceConfig) Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	svc := &service{
		roller:    cfg.Roller,
		log:       cfg.Logger,
		telemetry: newTelemetry(),
	}
	if svc.roller == nil {
		svc.roller = dice.NewRandomRoller()
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}
	return svc
}

func (s *service) Snapshot() *TelemetrySnapshot {
	return s.telemetry.snapshot()
}

func (s *service) EvaluateAttack(ctx context.Context, input *EvaluateAttackInput) (*Result, error) {
	start := time.Now()
	s.telemetry.recordAttempt()
	defer func() { s.telemetry.observeLatency(time.Since(start)) }()

	if input == nil || input.Attacker == nil || input.Defender == nil {
		s.telemetry.recordError()
		return nil, errors.InvalidArgument("attacker and defender are required")
	}
	if err := ctx.Err(); err != nil {
		s.telemetry.recordError()
		return nil, errors.Wrap(err, "attack evaluation canceled")
	}

	rules := input.Rules
	if rules == nil {
		rules = entities.DefaultCombatRules()
	}
	policy := rules.MitigationPolicy
	if policy == nil {
		policy = entities.DefaultCombatRules().MitigationPolicy
	}

	roller := s.roller
	if input.DeterministicSeed != nil {
		roller = dice.NewSeeded(*input.DeterministicSeed)
	}
	resolver := rolls.NewResolver(roller)

	result := &Result{DefenderHPBefore: defenderHP(input.Defender)}
	result.DefenderHPAfter = result.DefenderHPBefore

	components, warnings := sanitizeComponents(input, rules, policy)
	result.Components = components
	result.Warnings = warnings

	pending := componentSum(components)

	attackBonus := input.AttackBonus
	if input.Attacker.CombatRuntime != nil {
		attackBonus += input.Attacker.CombatRuntime.AttackBonus
	}
	attackRoll, err := resolver.AttackRoll(input.Attacker, input.Defender, &rolls.AttackRollInput{
		AttackType:   input.AttackType,
		Proficient:   input.Proficient,
		Advantage:    input.Advantage,
		Disadvantage: input.Disadvantage,
		ExtraBonus:   int(math.Round(attackBonus)),
	})
	if err != nil {
		s.telemetry.recordError()
		return nil, errors.Wrap(err, "attack roll failed")
	}
	result.AttackRoll = attackRoll
	result.Hit = attackRoll.Success
	result.CriticalHit = attackRoll.CriticalSuccess && input.CanCritical

	result.Breakdown = append(result.Breakdown, entities.BreakdownRow{
		Stage:  entities.StageHitCheck,
		Before: pending,
		After:  pending,
		Reason: attackRoll.UIText,
	})

	if !result.Hit {
		result.FinalDamage = 0
		result.Events = append(result.Events, attackRoll.UIText)
		return result, nil
	}

	critBefore := pending
	critReason := "not critical"
	if result.CriticalHit {
		for _, comp := range components {
			comp.Amount *= rules.CriticalMultiplier
		}
		pending = componentSum(components)
		critReason = fmt.Sprintf("critical hit x%.2g", rules.CriticalMultiplier)
	}
	result.Breakdown = append(result.Breakdown, entities.BreakdownRow{
		Stage:  entities.StageCritical,
		Before: critBefore,
		After:  pending,
		Delta:  pending - critBefore,
		Reason: critReason,
	})

	outcome := mitigate(input.Defender, components, policy, minimumDamage(input), &result.Breakdown)
	result.FinalDamage = outcome.finalDamage
	result.ShieldAbsorbed = outcome.shieldAbsorbed
	result.TempHPAbsorbed = outcome.tempHPAbsorbed

	hpLoss := int(math.Round(outcome.finalDamage))
	hpAfter := result.DefenderHPBefore - hpLoss
	if hpAfter < 0 {
		hpAfter = 0
	}
	result.DefenderHPAfter = hpAfter
	result.Death = hpAfter == 0
	result.Breakdown = append(result.Breakdown, entities.BreakdownRow{
		Stage:  entities.StageHPApply,
		Before: float64(result.DefenderHPBefore),
		After:  float64(hpAfter),
		Delta:  float64(hpAfter - result.DefenderHPBefore),
		Reason: fmt.Sprintf("%d damage applied", hpLoss),
	})

	if result.Death {
		result.ExperienceAward = input.Defender.ExperienceValue
	}

	apply := input.AuthorityMode == entities.AuthorityHybrid || input.AuthorityMode == entities.AuthorityServer
	if apply {
		s.applyOutcome(input.Defender, outcome, hpAfter)
		result.Applied = true
		if result.Death {
			s.telemetry.recordCompletion()
		}
	}

	result.Events = append(result.Events, attackRoll.UIText)
	if result.FinalDamage > 0 {
		result.Events = append(result.Events, fmt.Sprintf("%s takes %d damage", input.Defender.Name, hpLoss))
	}
	if result.Death {
		result.Events = append(result.Events, fmt.Sprintf("%s is slain", input.Defender.Name))
	}

	s.log.Debug("attack evaluated",
		zap.String("attacker", input.Attacker.ID),
		zap.String("defender", input.Defender.ID),
		zap.Bool("hit", result.Hit),
		zap.Float64("damage", result.FinalDamage),
		zap.Bool("applied", result.Applied))

	return result, nil
}

// applyOutcome commits the evaluated buffer and hp changes.
func (s *service) applyOutcome(defender *entities.Entity, outcome *mitigationOutcome, hpAfter int) {
	if defender.CombatRuntime == nil {
		defender.CombatRuntime = &entities.CombatRuntime{}
	}
	defender.CombatRuntime.Shield = outcome.shieldAfter
	defender.CombatRuntime.TemporaryHP = outcome.tempHPAfter
	if defender.Stats != nil {
		defender.Stats.HP = hpAfter
	}
	defender.SyncLegacyMirrors()
}

func defenderHP(defender *entities.Entity) int {
	if defender.Stats == nil {
		return 0
	}
	return defender.Stats.HP
}

func minimumDamage(input *EvaluateAttackInput) float64 {
	if input.MinimumDamage > 0 {
		return input.MinimumDamage
	}
	return entities.DefaultMinimumDamage
}

func componentSum(components []*DamageComponent) float64 {
	sum := 0.0
	for _, c := range components {
		sum += c.Amount
	}
	return sum
}
