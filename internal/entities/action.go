package entities

// Player action names accepted by the engine dispatch table.
const (
	ActionNameMove          = "move"
	ActionNameAttack        = "attack"
	ActionNameUseItem       = "use_item"
	ActionNameDropItem      = "drop_item"
	ActionNameUndoDropItem  = "undo_drop_item"
	ActionNameCastSpell     = "cast_spell"
	ActionNameInteract      = "interact"
	ActionNameRest          = "rest"
	ActionNameTransitionMap = "transition_map"
	ActionNameResolveChoice = "resolve_choice"
)

// Machine-stable error codes surfaced in the action envelope.
const (
	// Validation
	ErrGameNotFound           = "GAME_NOT_FOUND"
	ErrUnknownAction          = "UNKNOWN_ACTION"
	ErrTargetNotFound         = "TARGET_NOT_FOUND"
	ErrTargetOutOfRange       = "TARGET_OUT_OF_RANGE"
	ErrItemNotFound           = "ITEM_NOT_FOUND"
	ErrItemOnCooldown         = "ITEM_ON_COOLDOWN"
	ErrItemNoCharges          = "ITEM_NO_CHARGES"
	ErrInvalidEquipSlot       = "INVALID_EQUIP_SLOT"
	ErrEquipRequirementNotMet = "EQUIP_REQUIREMENT_NOT_MET"
	ErrQuestItemLocked        = "QUEST_ITEM_LOCKED"
	ErrUndoTokenMissing       = "UNDO_TOKEN_MISSING"
	ErrUndoTokenInvalid       = "UNDO_TOKEN_INVALID"
	ErrUndoExpired            = "UNDO_EXPIRED"

	// Status / effect
	ErrActionBlockedByStatus = "ACTION_BLOCKED_BY_STATUS"

	// Resource
	ErrSpellResourceUpdateFailed = "SPELL_RESOURCE_UPDATE_FAILED"
	ErrRestResourceUpdateFailed  = "REST_RESOURCE_UPDATE_FAILED"
	ErrInsufficientMP            = "INSUFFICIENT_MP"

	// Item runtime (retryable)
	ErrItemEffectFailed  = "ITEM_EFFECT_FAILED"
	ErrItemUseException  = "ITEM_USE_EXCEPTION"
	ErrItemDropException = "ITEM_DROP_EXCEPTION"

	// Combat (telemetric, not user-visible)
	ErrCombatAutoDegrade = "COMBAT_AUTO_DEGRADE"

	// Map / patches
	ErrMapUpdatesContractTypeError = "MAP_UPDATES_CONTRACT_TYPE_ERROR"
	ErrMapUpdatesUnauthorizedField = "MAP_UPDATES_CONTRACT_UNAUTHORIZED_FIELD"
	ErrPatchBatchTypeError         = "PATCH_BATCH_TYPE_ERROR"
	ErrPatchBatchFieldError        = "PATCH_BATCH_FIELD_ERROR"
	ErrPatchBatchDependencyError   = "PATCH_BATCH_DEPENDENCY_ERROR"
	ErrPatchPostCheckFailed        = "PATCH_POST_CHECK_FAILED"
	ErrLocalProviderFailed         = "LOCAL_PROVIDER_FAILED"
	ErrMapGenerationFailed         = "MAP_GENERATION_FAILED"

	// Process (retryable)
	ErrActionProcessError = "ACTION_PROCESS_ERROR"

	// Choices
	ErrChoiceContextNotFound = "CHOICE_CONTEXT_NOT_FOUND"
	ErrChoiceNotFound        = "CHOICE_NOT_FOUND"
)

var retryableCodes = map[string]bool{
	ErrItemEffectFailed:   true,
	ErrItemUseException:   true,
	ErrItemDropException:  true,
	ErrActionProcessError: true,
}

// RetryableCode reports whether a client may safely retry the action
// (with the same idempotency key) after seeing this code.
func RetryableCode(code string) bool {
	return retryableCodes[code]
}

// PerformanceSample carries per-action latency figures.
type PerformanceSample struct {
	TurnElapsedMs float64 `json:"turn_elapsed_ms"`
	P50Ms         float64 `json:"p50_ms"`
	P95Ms         float64 `json:"p95_ms"`
}

// ActionResult is the envelope every action returns.
type ActionResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Reason  string   `json:"reason"` // "ok" or a stable machine reason
	Events  []string `json:"events"`

	ErrorCode string `json:"error_code,omitempty"`
	Retryable bool   `json:"retryable"`

	ImpactSummary map[string]any `json:"impact_summary,omitempty"`
	ActionTraceID string         `json:"action_trace_id,omitempty"`

	IdempotentReplay       bool   `json:"idempotent_replay,omitempty"`
	LLMInteractionRequired bool   `json:"llm_interaction_required,omitempty"`
	Narrative              string `json:"narrative,omitempty"`

	Performance      *PerformanceSample `json:"performance,omitempty"`
	CombatBreakdown  []*BreakdownRow    `json:"combat_breakdown,omitempty"`
	CombatProjection *CombatProjection  `json:"combat_projection,omitempty"`
}

// OKResult builds a success envelope.
func OKResult(message string) *ActionResult {
	return &ActionResult{
		Success: true,
		Message: message,
		Reason:  "ok",
		Events:  []string{},
	}
}

// FailResult builds a failure envelope with a machine code.
func FailResult(code, message string) *ActionResult {
	return &ActionResult{
		Success:   false,
		Message:   message,
		Reason:    code,
		Events:    []string{},
		ErrorCode: code,
		Retryable: RetryableCode(code),
	}
}

// AddEvent appends an event line to the envelope.
func (r *ActionResult) AddEvent(event string) {
	if event == "" {
		return
	}
	r.Events = append(r.Events, event)
}

// Clone deep-copies the envelope for idempotent replay.
func (r *ActionResult) Clone() *ActionResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Events = append([]string(nil), r.Events...)
	out.ImpactSummary = copyAnyMap(r.ImpactSummary)
	if r.Performance != nil {
		p := *r.Performance
		out.Performance = &p
	}
	if r.CombatBreakdown != nil {
		out.CombatBreakdown = make([]*BreakdownRow, len(r.CombatBreakdown))
		for i, row := range r.CombatBreakdown {
			rr := *row
			out.CombatBreakdown[i] = &rr
		}
	}
	if r.CombatProjection != nil {
		p := *r.CombatProjection
		out.CombatProjection = &p
	}
	return &out
}
