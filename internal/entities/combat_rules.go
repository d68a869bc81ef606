package entities

// CombatRuleVersion is the current rule-set version stamped onto states.
const CombatRuleVersion = "v2"

// Pipeline stage names, in fixed application order. Every stage emits
// one breakdown row.
const (
	StageHitCheck      = "hit_check"
	StageCritical      = "critical"
	StageImmunity      = "immunity_short_circuit"
	StageShield        = "shield"
	StageTemporaryHP   = "temporary_hp"
	StageResistance    = "resistance"
	StageVulnerability = "vulnerability"
	StageMinimumDamage = "minimum_damage"
	StageHPApply       = "hp_apply"
)

// DamageOrder is the canonical mitigation order.
var DamageOrder = []string{
	StageHitCheck,
	StageCritical,
	StageImmunity,
	StageShield,
	StageTemporaryHP,
	StageResistance,
	StageVulnerability,
	StageMinimumDamage,
	StageHPApply,
}

// ACPolicyHitThresholdOnly marks AC as a hit gate that never reduces damage.
const ACPolicyHitThresholdOnly = "hit_threshold_only"

// DamageTypePhysical is the fallback for unknown damage types.
const DamageTypePhysical = "physical"

// DamageTypes is the whitelist accepted from external callers.
var DamageTypes = []string{
	DamageTypePhysical, "fire", "ice", "lightning",
	"poison", "arcane", "holy", "shadow",
}

// KnownDamageType reports whether the type is whitelisted.
func KnownDamageType(t string) bool {
	for _, d := range DamageTypes {
		if d == t {
			return true
		}
	}
	return false
}

// MitigationPolicy is the per-state combat policy knob set.
type MitigationPolicy struct {
	AllowMultiDamageComponents  bool `json:"allow_multi_damage_components"`
	AllowPenetration            bool `json:"allow_penetration"`
	AllowTrueDamage             bool `json:"allow_true_damage"`
	AllowShieldPenetration      bool `json:"allow_shield_penetration"`
	AllowTemporaryHPPenetration bool `json:"allow_temporary_hp_penetration"`

	// Resistance multiplies damage by clamp(1-resist, min, max).
	ResistanceClampMin float64 `json:"resistance_clamp_min"`
	ResistanceClampMax float64 `json:"resistance_clamp_max"`

	// Vulnerability multiplies damage by clamp(1+vuln, min, max).
	VulnerabilityMultMin float64 `json:"vulnerability_mult_min"`
	VulnerabilityMultMax float64 `json:"vulnerability_mult_max"`
}

// Override sanitation caps for externally supplied combat inputs.
const (
	MaxDamageComponents   = 6
	MaxComponentValue     = 500.0
	DefaultMinimumDamage  = 1.0
	DefaultCritMultiplier = 1.5
)

// CombatRules bundles the rule-set a state runs combat under.
type CombatRules struct {
	DamageOrder        []string          `json:"damage_order"`
	ACPolicy           string            `json:"ac_policy"`
	CriticalMultiplier float64           `json:"critical_multiplier"`
	MitigationPolicy   *MitigationPolicy `json:"mitigation_policy"`

	// DebugAllowOverrides gates externally supplied damage components,
	// penetration, true damage, and damage types.
	DebugAllowOverrides bool `json:"debug_allow_overrides,omitempty"`
}

// DefaultCombatRules returns the v2 rule set.
func DefaultCombatRules() *CombatRules {
	return &CombatRules{
		DamageOrder:        append([]string(nil), DamageOrder...),
		ACPolicy:           ACPolicyHitThresholdOnly,
		CriticalMultiplier: DefaultCritMultiplier,
		MitigationPolicy: &MitigationPolicy{
			AllowMultiDamageComponents:  true,
			AllowPenetration:            false,
			AllowTrueDamage:             false,
			AllowShieldPenetration:      false,
			AllowTemporaryHPPenetration: false,
			ResistanceClampMin:          0.05,
			ResistanceClampMax:          1.0,
			VulnerabilityMultMin:        1.0,
			VulnerabilityMultMax:        2.0,
		},
	}
}

// Clone returns a deep copy of the rule set.
func (r *CombatRules) Clone() *CombatRules {
	if r == nil {
		return nil
	}
	out := *r
	out.DamageOrder = append([]string(nil), r.DamageOrder...)
	if r.MitigationPolicy != nil {
		policy := *r.MitigationPolicy
		out.MitigationPolicy = &policy
	}
	return &out
}

// BreakdownRow is one mitigation stage record in evaluation order.
type BreakdownRow struct {
	Stage  string  `json:"stage"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// CombatProjection is the replay-comparable outcome of an evaluation.
type CombatProjection struct {
	Hit    bool    `json:"hit"`
	Damage float64 `json:"damage"`
	Death  bool    `json:"death"`
	Exp    int     `json:"exp"`
}
