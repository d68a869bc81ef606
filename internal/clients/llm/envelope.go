package llm

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/services/progress"
	"github.com/labyrinthia/engine/internal/services/state"
)

// metaErrorCode keys the stable machine code attached to contract
// violations, read back via errors.GetMeta.
const metaErrorCode = "error_code"

// maxPlanDim bounds floor dimensions a map plan may request.
const maxPlanDim = 64

// Envelope is the JSON reply shape shared by every oracle task. Each
// operation consumes the keys it recognizes and ignores the rest, with
// two strict exceptions: map tiles and patches are validated against
// field whitelists and violations are returned as errors.
type Envelope struct {
	Narrative string `json:"narrative,omitempty"`

	PlayerUpdatesRaw map[string]any `json:"player_updates,omitempty"`

	Patches             []map[string]any `json:"patches,omitempty"`
	PatchBatchID        string           `json:"patch_batch_id,omitempty"`
	PatchRollbackMode   string           `json:"patch_rollback_mode,omitempty"`
	PatchDependsOnBatch string           `json:"patch_depends_on_batch,omitempty"`

	Map   *mapPayload          `json:"map,omitempty"`
	Hints *mapgen.MonsterHints `json:"hints,omitempty"`

	Items []json.RawMessage `json:"items,omitempty"`
	Quest *entities.Quest   `json:"quest,omitempty"`

	// Item effect contract keys, top level.
	EffectScope             string         `json:"effect_scope,omitempty"`
	Effects                 map[string]any `json:"effects,omitempty"`
	HintLevel               string         `json:"hint_level,omitempty"`
	TriggerHint             string         `json:"trigger_hint,omitempty"`
	RiskHint                string         `json:"risk_hint,omitempty"`
	ExpectedOutcomes        []string       `json:"expected_outcomes,omitempty"`
	RequiresUseConfirmation bool           `json:"requires_use_confirmation,omitempty"`
	ConsumptionHint         string         `json:"consumption_hint,omitempty"`

	// Quest refresh contract keys, top level.
	StoryContext    string   `json:"story_context,omitempty"`
	LLMNotes        string   `json:"llm_notes,omitempty"`
	ShouldComplete  bool     `json:"should_complete,omitempty"`
	NewObjectives   []string `json:"new_objectives,omitempty"`
	NarrativeUpdate string   `json:"narrative_update,omitempty"`
}

// mapPayload is the full-floor construction block of a map plan reply.
// Tiles not named stay walls.
type mapPayload struct {
	Name       string                    `json:"name,omitempty"`
	FloorTheme string                    `json:"floor_theme,omitempty"`
	Width      int                       `json:"width,omitempty"`
	Height     int                       `json:"height,omitempty"`
	Tiles      map[string]map[string]any `json:"tiles,omitempty"`
}

// parseEnvelope decodes a raw oracle reply. Unknown top-level keys are
// dropped by the JSON decoder, which is the contract's "ignored" arm.
func parseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Validationf("oracle reply is not a JSON object: %v", err)
	}
	return &env, nil
}

// playerUpdatesFields are the only subkeys the engine consumes from a
// player_updates block. Anything else is dropped here so the state
// validator never sees it.
var playerUpdatesFields = map[string]bool{
	"abilities":    true,
	"stats":        true,
	"add_items":    true,
	"remove_items": true,
}

// PlayerUpdates extracts the whitelisted player mutation block.
// Returns nil when the reply carries none.
func (e *Envelope) PlayerUpdates() *PlayerUpdates {
	if len(e.PlayerUpdatesRaw) == 0 {
		return nil
	}
	out := &PlayerUpdates{}
	if m, ok := e.PlayerUpdatesRaw["abilities"].(map[string]any); ok {
		out.Abilities = m
	}
	if m, ok := e.PlayerUpdatesRaw["stats"].(map[string]any); ok {
		out.Stats = m
	}
	if raw, ok := e.PlayerUpdatesRaw["add_items"]; ok {
		out.AddItems = itemsFromAny(raw)
	}
	if raw, ok := e.PlayerUpdatesRaw["remove_items"].([]any); ok {
		for _, v := range raw {
			if id, ok := v.(string); ok && id != "" {
				out.RemoveItems = append(out.RemoveItems, id)
			}
		}
	}
	if out.Empty() {
		return nil
	}
	return out
}

// DroppedPlayerUpdateKeys lists player_updates subkeys outside the
// contract, for warn logging.
func (e *Envelope) DroppedPlayerUpdateKeys() []string {
	var dropped []string
	for key := range e.PlayerUpdatesRaw {
		if !playerUpdatesFields[key] {
			dropped = append(dropped, key)
		}
	}
	sort.Strings(dropped)
	return dropped
}

// patchFields is the strict per-patch schema.
var patchFields = map[string]bool{
	"id":            true,
	"op":            true,
	"target":        true,
	"tile":          true,
	"payload":       true,
	"risk_level":    true,
	"intent_reason": true,
}

// PatchBatch converts the patches array into a batch for
// StateModifier.ApplyPatchBatch. Field violations return
// PATCH_BATCH_FIELD_ERROR, type violations PATCH_BATCH_TYPE_ERROR.
// Returns nil when the reply carries no patches.
func (e *Envelope) PatchBatch() (*state.PatchBatch, error) {
	if len(e.Patches) == 0 {
		return nil, nil
	}
	batch := &state.PatchBatch{
		BatchID:        e.PatchBatchID,
		RollbackMode:   e.PatchRollbackMode,
		DependsOnBatch: e.PatchDependsOnBatch,
		Patches:        make([]*state.Patch, 0, len(e.Patches)),
	}
	for i, raw := range e.Patches {
		patch, err := patchFromPayload(i, raw)
		if err != nil {
			return nil, err
		}
		batch.Patches = append(batch.Patches, patch)
	}
	return batch, nil
}

func patchFromPayload(index int, raw map[string]any) (*state.Patch, error) {
	for _, field := range sortedKeys(raw) {
		if !patchFields[field] {
			return nil, errors.Validationf("patch %d: unauthorized field %q", index, field).
				WithMeta(metaErrorCode, entities.ErrPatchBatchFieldError)
		}
	}
	patch := &state.Patch{}
	for _, field := range []struct {
		name string
		dst  *string
	}{
		{"id", &patch.ID},
		{"op", &patch.Op},
		{"target", &patch.Target},
		{"tile", &patch.Tile},
		{"risk_level", &patch.RiskLevel},
		{"intent_reason", &patch.IntentReason},
	} {
		value, present := raw[field.name]
		if !present {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return nil, errors.Validationf("patch %d: field %q must be a string", index, field.name).
				WithMeta(metaErrorCode, entities.ErrPatchBatchTypeError)
		}
		*field.dst = s
	}
	if raw["payload"] != nil {
		payload, ok := raw["payload"].(map[string]any)
		if !ok {
			return nil, errors.Validationf("patch %d: payload must be an object", index).
				WithMeta(metaErrorCode, entities.ErrPatchBatchTypeError)
		}
		patch.Payload = payload
	}
	if patch.ID == "" {
		patch.ID = fmt.Sprintf("patch-%d", index+1)
	}
	if patch.Op == "" || patch.Target == "" {
		return nil, errors.Validationf("patch %s: op and target are required", patch.ID).
			WithMeta(metaErrorCode, entities.ErrPatchBatchFieldError)
	}
	return patch, nil
}

// constructionTileFields is the strict whitelist for full-floor tile
// construction. Exploration flags and monster placements are rejected:
// a fresh floor starts unexplored and monsters arrive through spawn
// hints, never baked into tiles.
var constructionTileFields = map[string]bool{
	"terrain":         true,
	"type":            true,
	"room_id":         true,
	"room_type":       true,
	"has_event":       true,
	"event_type":      true,
	"event_data":      true,
	"is_event_hidden": true,
	"items":           true,
}

var constructionEventTypes = map[string]bool{
	entities.EventCombat:   true,
	entities.EventTreasure: true,
	entities.EventTrap:     true,
	entities.EventStory:    true,
	entities.EventMystery:  true,
}

// BuildMap materializes the floor described by the map block. Unknown
// tile fields are rejected with MAP_UPDATES_CONTRACT_UNAUTHORIZED_FIELD
// and bad values with MAP_UPDATES_CONTRACT_TYPE_ERROR; the orchestrator
// treats either as a contract failure and rolls back to the local
// provider.
func (e *Envelope) BuildMap(input *mapgen.GenerateInput, newID func() string) (*entities.GameMap, error) {
	if e.Map == nil {
		return nil, errors.Validation("oracle reply carries no map block").
			WithMeta(metaErrorCode, entities.ErrMapUpdatesContractTypeError)
	}
	width, height := e.Map.Width, e.Map.Height
	if width <= 0 {
		width = input.Width
	}
	if height <= 0 {
		height = input.Height
	}
	if width <= 0 || height <= 0 || width > maxPlanDim || height > maxPlanDim {
		return nil, errors.Validationf("map plan dimensions %dx%d out of range", width, height).
			WithMeta(metaErrorCode, entities.ErrMapUpdatesContractTypeError)
	}

	depth := input.Depth
	if depth <= 0 {
		depth = 1
	}
	maxFloor := input.MaxFloor
	if maxFloor < depth {
		maxFloor = depth
	}

	name := e.Map.Name
	if name == "" {
		name = fmt.Sprintf("Floor %d", depth)
	}
	m := &entities.GameMap{
		ID:         newID(),
		Name:       name,
		Width:      width,
		Height:     height,
		Depth:      depth,
		MaxFloor:   maxFloor,
		FloorTheme: e.Map.FloorTheme,
		Tiles:      make(map[string]*entities.MapTile, width*height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.SetTile(&entities.MapTile{X: x, Y: y, Terrain: entities.TerrainWall})
		}
	}

	for _, key := range sortedKeys(e.Map.Tiles) {
		fields := e.Map.Tiles[key]
		x, y, err := entities.ParseTileKey(key)
		if err != nil {
			return nil, errors.Validationf("map plan tile key %q is malformed", key).
				WithMeta(metaErrorCode, entities.ErrMapUpdatesContractTypeError)
		}
		if !m.InBounds(x, y) {
			return nil, errors.Validationf("map plan tile %q outside %dx%d bounds", key, width, height).
				WithMeta(metaErrorCode, entities.ErrMapUpdatesContractTypeError)
		}
		tile, err := tileFromPayload(x, y, fields)
		if err != nil {
			return nil, err
		}
		m.SetTile(tile)
	}
	return m, nil
}

func tileFromPayload(x, y int, fields map[string]any) (*entities.MapTile, error) {
	key := entities.TileKey(x, y)
	for _, field := range sortedKeys(fields) {
		if !constructionTileFields[field] {
			return nil, errors.Validationf("map plan tile %s: unauthorized field %q", key, field).
				WithMeta(metaErrorCode, entities.ErrMapUpdatesUnauthorizedField)
		}
	}
	tile := &entities.MapTile{X: x, Y: y, Terrain: entities.TerrainFloor}

	rawTerrain, ok := fields["terrain"]
	if !ok {
		rawTerrain, ok = fields["type"]
	}
	if ok {
		terrain, isString := rawTerrain.(string)
		if !isString || !entities.ValidTerrain(entities.TerrainType(terrain)) {
			return nil, errors.Validationf("map plan tile %s: invalid terrain %v", key, rawTerrain).
				WithMeta(metaErrorCode, entities.ErrMapUpdatesContractTypeError)
		}
		tile.Terrain = entities.TerrainType(terrain)
	}
	if v, ok := fields["room_id"].(string); ok {
		tile.RoomID = v
	}
	if v, ok := fields["room_type"].(string); ok {
		tile.RoomType = v
	}
	if v, ok := fields["has_event"].(bool); ok {
		tile.HasEvent = v
	}
	if raw, present := fields["event_type"]; present {
		eventType, isString := raw.(string)
		if !isString || !constructionEventTypes[eventType] {
			return nil, errors.Validationf("map plan tile %s: invalid event_type %v", key, raw).
				WithMeta(metaErrorCode, entities.ErrMapUpdatesContractTypeError)
		}
		tile.EventType = eventType
		tile.HasEvent = true
	}
	if raw, present := fields["event_data"]; present {
		data, isMap := raw.(map[string]any)
		if !isMap {
			return nil, errors.Validationf("map plan tile %s: event_data must be an object", key).
				WithMeta(metaErrorCode, entities.ErrMapUpdatesContractTypeError)
		}
		tile.EventData = data
	}
	if v, ok := fields["is_event_hidden"].(bool); ok {
		tile.IsEventHidden = v
	}
	if raw, present := fields["items"]; present {
		tile.Items = itemsFromAny(raw)
	}
	return tile, nil
}

// ItemEffect collects the item effect contract keys. The special
// effects decode into status effects; malformed entries are dropped.
func (e *Envelope) ItemEffect() *ItemEffect {
	out := &ItemEffect{
		Narrative:               e.Narrative,
		EffectScope:             e.EffectScope,
		PlayerUpdates:           e.PlayerUpdates(),
		HintLevel:               e.HintLevel,
		TriggerHint:             e.TriggerHint,
		RiskHint:                e.RiskHint,
		ExpectedOutcomes:        e.ExpectedOutcomes,
		RequiresUseConfirmation: e.RequiresUseConfirmation,
		ConsumptionHint:         e.ConsumptionHint,
	}
	if raw, ok := e.Effects["special_effects"]; ok {
		out.SpecialEffects = statusEffectsFromAny(raw)
	}
	return out
}

// QuestRefresh maps the quest refresh contract keys.
func (e *Envelope) QuestRefresh() *progress.QuestRefresh {
	return &progress.QuestRefresh{
		StoryContext:    e.StoryContext,
		LLMNotes:        e.LLMNotes,
		ShouldComplete:  e.ShouldComplete,
		NewObjectives:   e.NewObjectives,
		NarrativeUpdate: e.NarrativeUpdate,
	}
}

// ItemList decodes the generated items. Entries that fail to decode or
// lack a name are dropped rather than failing the whole reply.
func (e *Envelope) ItemList() []*entities.Item {
	items := make([]*entities.Item, 0, len(e.Items))
	for _, raw := range e.Items {
		var item entities.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.Name == "" {
			continue
		}
		if item.ItemType == "" {
			item.ItemType = "consumable"
		}
		items = append(items, &item)
	}
	return items
}

// itemsFromAny decodes a loose []any of item objects via a JSON
// round-trip, dropping malformed entries.
func itemsFromAny(raw any) []*entities.Item {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var items []*entities.Item
	for _, entry := range list {
		encoded, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		var item entities.Item
		if err := json.Unmarshal(encoded, &item); err != nil {
			continue
		}
		if item.Name == "" {
			continue
		}
		items = append(items, &item)
	}
	return items
}

func statusEffectsFromAny(raw any) []*entities.StatusEffect {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var effects []*entities.StatusEffect
	for _, entry := range list {
		encoded, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		var eff entities.StatusEffect
		if err := json.Unmarshal(encoded, &eff); err != nil {
			continue
		}
		if eff.Name == "" {
			continue
		}
		effects = append(effects, &eff)
	}
	return effects
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
