package state

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
)

// Patch operations.
const (
	PatchOpAdd    = "add"
	PatchOpUpdate = "update"
	PatchOpRemove = "remove"
)

// Patch targets.
const (
	PatchTargetTile         = "tile"
	PatchTargetEvent        = "event"
	PatchTargetMonster      = "monster"
	PatchTargetQuestBinding = "quest_binding"
	PatchTargetRoom         = "room"
	PatchTargetCorridor     = "corridor"
)

// Patch risk levels.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Rollback modes.
const (
	RollbackFull    = "full"
	RollbackPartial = "partial"
)

// Release stages where high-risk patches may be blocked.
const (
	StageDebug  = "debug"
	StageCanary = "canary"
	StageStable = "stable"
)

// PostCheckFailed marks diagnostics produced by post-batch validation.
const PostCheckFailed = "PATCH_POST_CHECK_FAILED"

// Patch is one generative map edit.
type Patch struct {
	ID           string         `json:"id"`
	Op           string         `json:"op"`     // add | update | remove
	Target       string         `json:"target"` // tile | event | monster | quest_binding | room | corridor
	Tile         string         `json:"tile,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	RiskLevel    string         `json:"risk_level,omitempty"`
	IntentReason string         `json:"intent_reason,omitempty"`
}

// PatchBatch groups patches under one rollback policy.
type PatchBatch struct {
	Patches        []*Patch `json:"patches"`
	RollbackMode   string   `json:"rollback_mode,omitempty"` // full | partial
	BatchID        string   `json:"batch_id"`
	DependsOnBatch string   `json:"depends_on_batch,omitempty"`
}

// PatchBatchResult reports a batch outcome; contract violations are
// returned as errors instead.
type PatchBatchResult struct {
	BatchID         string   `json:"batch_id"`
	PatchCount      int      `json:"patch_count"`
	AppliedCount    int      `json:"applied_count"`
	Success         bool     `json:"success"`
	RollbackApplied bool     `json:"rollback_applied,omitempty"`
	Diagnostics     []string `json:"diagnostics,omitempty"`
}

// stateSnapshot captures the patchable slices of a game state.
type stateSnapshot struct {
	tiles         map[string]*entities.MapTile
	monsters      []*entities.Entity
	quests        []*entities.Quest
	pendingEvents []string
	metrics       *entities.GenerationMetrics
}

func takeSnapshot(state *entities.GameState) *stateSnapshot {
	snap := &stateSnapshot{
		pendingEvents: append([]string(nil), state.PendingEvents...),
		metrics:       state.GenerationMetrics.Clone(),
	}
	if state.CurrentMap != nil && state.CurrentMap.Tiles != nil {
		snap.tiles = make(map[string]*entities.MapTile, len(state.CurrentMap.Tiles))
		for k, t := range state.CurrentMap.Tiles {
			snap.tiles[k] = t.Clone()
		}
	}
	snap.monsters = make([]*entities.Entity, len(state.Monsters))
	for i, m := range state.Monsters {
		snap.monsters[i] = m.Clone()
	}
	snap.quests = make([]*entities.Quest, len(state.Quests))
	for i, q := range state.Quests {
		snap.quests[i] = q.Clone()
	}
	return snap
}

func restoreSnapshot(state *entities.GameState, snap *stateSnapshot) {
	if state.CurrentMap != nil {
		state.CurrentMap.Tiles = snap.tiles
	}
	state.Monsters = snap.monsters
	state.Quests = snap.quests
	state.PendingEvents = snap.pendingEvents
	state.GenerationMetrics = snap.metrics
}

func (s *service) ApplyPatchBatch(state *entities.GameState, batch *PatchBatch, source string) (*PatchBatchResult, error) {
	if state == nil || state.CurrentMap == nil {
		return nil, errors.InvalidArgument("state with current map is required")
	}
	if batch == nil || batch.BatchID == "" {
		return nil, errors.InvalidArgument("batch with batch_id is required")
	}
	mode := batch.RollbackMode
	if mode == "" {
		mode = RollbackFull
	}
	if mode != RollbackFull && mode != RollbackPartial {
		return nil, errors.Validationf("unknown rollback_mode %q", batch.RollbackMode)
	}
	metrics := state.EnsureMetrics()
	if batch.DependsOnBatch != "" && batch.DependsOnBatch != metrics.LastPatchBatchID {
		err := errors.FailedPreconditionf("batch %s depends on %s, last applied is %q",
			batch.BatchID, batch.DependsOnBatch, metrics.LastPatchBatchID)
		s.record(RecordPatchBatch, source, batch.BatchID, nil, err)
		return nil, err
	}

	started := s.clock.Now()
	result := &PatchBatchResult{BatchID: batch.BatchID, PatchCount: len(batch.Patches)}

	var snapshots []*stateSnapshot
	aborted := false
	for _, patch := range batch.Patches {
		snap := takeSnapshot(state)
		snapshots = append(snapshots, snap)

		err := s.applyPatch(state, patch)
		if err == nil {
			result.AppliedCount++
			continue
		}

		result.Diagnostics = append(result.Diagnostics,
			fmt.Sprintf("patch %s (%s %s): %v", patch.ID, patch.Op, patch.Target, err))
		if mode == RollbackFull {
			restoreSnapshot(state, snapshots[0])
			result.RollbackApplied = true
			aborted = true
			break
		}
		restoreSnapshot(state, snap)
	}

	if postDiags := s.postCheckDiagnostics(state); len(postDiags) > 0 {
		result.Diagnostics = append(result.Diagnostics, postDiags...)
		if len(snapshots) > 0 && !aborted {
			restoreSnapshot(state, snapshots[0])
			result.RollbackApplied = true
		}
	}

	result.Success = !result.RollbackApplied &&
		result.AppliedCount == len(batch.Patches) &&
		len(result.Diagnostics) == 0

	// metrics entry and the batch pointer land after any rollback so
	// dependency chains keep advancing
	metrics = state.EnsureMetrics()
	metrics.AppendPatchBatch(&entities.PatchBatchRecord{
		BatchID:         batch.BatchID,
		Source:          source,
		PatchCount:      len(batch.Patches),
		AppliedCount:    result.AppliedCount,
		Success:         result.Success,
		RollbackApplied: result.RollbackApplied,
		Diagnostics:     result.Diagnostics,
		AppliedAt:       started,
		DurationMs:      float64(s.clock.Now().Sub(started).Microseconds()) / 1000.0,
	})
	metrics.LastPatchBatchID = batch.BatchID

	s.record(RecordPatchBatch, source, batch.BatchID, map[string]any{
		"patch_count":      len(batch.Patches),
		"applied_count":    result.AppliedCount,
		"success":          result.Success,
		"rollback_applied": result.RollbackApplied,
	}, nil)
	s.log.Info("patch batch processed",
		zap.String("batch_id", batch.BatchID),
		zap.Int("patches", len(batch.Patches)),
		zap.Int("applied", result.AppliedCount),
		zap.Bool("rollback", result.RollbackApplied))
	return result, nil
}

// applyPatch dispatches one patch; the returned error is a per-patch
// failure handled by the batch rollback policy.
func (s *service) applyPatch(state *entities.GameState, patch *Patch) error {
	if patch == nil {
		return errors.Validation("nil patch")
	}
	if s.blockHighRisk && (s.releaseStage == StageDebug || s.releaseStage == StageCanary) {
		if patch.RiskLevel == RiskHigh || patch.RiskLevel == RiskCritical {
			return errors.FailedPreconditionf("risk_level %s blocked in %s stage", patch.RiskLevel, s.releaseStage)
		}
	}

	switch patch.Target {
	case PatchTargetTile:
		return s.applyTilePatch(state, patch)
	case PatchTargetEvent:
		return s.applyEventPatch(state, patch)
	case PatchTargetMonster:
		return s.applyMonsterPatch(state, patch)
	case PatchTargetQuestBinding:
		return s.applyQuestBindingPatch(state, patch)
	case PatchTargetRoom:
		return s.applyRoomPatch(state, patch)
	case PatchTargetCorridor:
		return s.applyCorridorPatch(state, patch)
	}
	return errors.Validationf("unknown patch target %q", patch.Target)
}

func (s *service) patchTile(state *entities.GameState, patch *Patch) (*entities.MapTile, int, int, error) {
	if patch.Tile == "" {
		return nil, 0, 0, errors.Validationf("patch %s requires a tile key", patch.ID)
	}
	x, y, err := entities.ParseTileKey(patch.Tile)
	if err != nil {
		return nil, 0, 0, errors.Validationf("patch %s: invalid tile key %q", patch.ID, patch.Tile)
	}
	if !state.CurrentMap.InBounds(x, y) {
		return nil, 0, 0, errors.Validationf("patch %s: tile %q outside map bounds", patch.ID, patch.Tile)
	}
	return state.CurrentMap.TileAt(x, y), x, y, nil
}

func (s *service) applyTilePatch(state *entities.GameState, patch *Patch) error {
	tile, x, y, err := s.patchTile(state, patch)
	if err != nil {
		return err
	}

	switch patch.Op {
	case PatchOpAdd, PatchOpUpdate:
		for field := range patch.Payload {
			if !tileUpdateFields[field] || field == "monster" {
				return errors.Validationf("patch %s: unauthorized tile field %q", patch.ID, field)
			}
		}
		if raw, present := terrainField(patch.Payload); present {
			terrain, ok := raw.(string)
			if !ok || !entities.ValidTerrain(entities.TerrainType(terrain)) {
				return errors.Validationf("patch %s: invalid terrain %v", patch.ID, raw)
			}
		}
		_, err := s.applyTileUpdate(state, tileUpdate{x: x, y: y, fields: patch.Payload})
		return err

	case PatchOpRemove:
		if tile == nil {
			return errors.NotFoundf("patch %s: tile %s not present", patch.ID, patch.Tile)
		}
		if tile.CharacterID != "" {
			return errors.FailedPreconditionf("patch %s: tile %s holds %s", patch.ID, patch.Tile, tile.CharacterID)
		}
		// removal resets to bare wall
		state.CurrentMap.SetTile(&entities.MapTile{X: x, Y: y, Terrain: entities.TerrainWall})
		return nil
	}
	return errors.Validationf("patch %s: unknown op %q", patch.ID, patch.Op)
}

func (s *service) applyEventPatch(state *entities.GameState, patch *Patch) error {
	tile, _, _, err := s.patchTile(state, patch)
	if err != nil {
		return err
	}
	if tile == nil {
		return errors.NotFoundf("patch %s: tile %s not present", patch.ID, patch.Tile)
	}

	switch patch.Op {
	case PatchOpAdd:
		if tile.CharacterID != "" {
			return errors.FailedPreconditionf("patch %s: tile %s holds a monster", patch.ID, patch.Tile)
		}
		if !tile.Walkable() {
			return errors.FailedPreconditionf("patch %s: tile %s terrain %s is not walkable", patch.ID, patch.Tile, tile.Terrain)
		}
		eventType, _ := patch.Payload["event_type"].(string)
		if !validEventTypes[eventType] {
			return errors.Validationf("patch %s: invalid event_type %q", patch.ID, eventType)
		}
		tile.HasEvent = true
		tile.EventType = eventType
		tile.EventTriggered = false
		if data, ok := patch.Payload["event_data"].(map[string]any); ok {
			tile.EventData = data
		}
		if hidden, ok := patch.Payload["is_event_hidden"].(bool); ok {
			tile.IsEventHidden = hidden
		}
		return nil

	case PatchOpUpdate:
		if !tile.HasEvent {
			return errors.NotFoundf("patch %s: tile %s has no event", patch.ID, patch.Tile)
		}
		if eventType, ok := patch.Payload["event_type"].(string); ok {
			if !validEventTypes[eventType] {
				return errors.Validationf("patch %s: invalid event_type %q", patch.ID, eventType)
			}
			tile.EventType = eventType
		}
		if data, ok := patch.Payload["event_data"].(map[string]any); ok {
			tile.EventData = data
		}
		if hidden, ok := patch.Payload["is_event_hidden"].(bool); ok {
			tile.IsEventHidden = hidden
		}
		if triggered, ok := patch.Payload["event_triggered"].(bool); ok {
			tile.EventTriggered = triggered
		}
		return nil

	case PatchOpRemove:
		tile.HasEvent = false
		tile.EventType = ""
		tile.EventData = nil
		tile.IsEventHidden = false
		tile.EventTriggered = false
		return nil
	}
	return errors.Validationf("patch %s: unknown op %q", patch.ID, patch.Op)
}

func (s *service) applyMonsterPatch(state *entities.GameState, patch *Patch) error {
	tile, x, y, err := s.patchTile(state, patch)
	if err != nil {
		return err
	}
	if tile == nil {
		tile = &entities.MapTile{X: x, Y: y, Terrain: entities.TerrainWall}
		state.CurrentMap.SetTile(tile)
	}

	payload := make(map[string]any, len(patch.Payload)+1)
	for k, v := range patch.Payload {
		payload[k] = v
	}
	payload["action"] = patch.Op
	if err := s.validateMonsterPayload(state, x, y, payload); err != nil {
		return err
	}
	return s.applyMonsterPayload(state, tile, payload)
}

// applyQuestBindingPatch binds a placed monster or a tile event to a
// quest objective.
func (s *service) applyQuestBindingPatch(state *entities.GameState, patch *Patch) error {
	questID, _ := patch.Payload["quest_id"].(string)
	quest := state.QuestByID(questID)
	if quest == nil {
		return errors.NotFoundf("patch %s: quest %q not found", patch.ID, questID)
	}

	if questMonsterID, ok := patch.Payload["quest_monster_id"].(string); ok && questMonsterID != "" {
		monsterID, _ := patch.Payload["monster_id"].(string)
		monster := state.Monster(monsterID)
		if monster == nil {
			return errors.NotFoundf("patch %s: monster %q not found", patch.ID, monsterID)
		}
		var slot *entities.QuestMonster
		for _, qm := range quest.SpecialMonsters {
			if qm.ID == questMonsterID {
				slot = qm
				break
			}
		}
		if slot == nil {
			return errors.NotFoundf("patch %s: quest monster %q not in quest %s", patch.ID, questMonsterID, questID)
		}
		switch patch.Op {
		case PatchOpAdd, PatchOpUpdate:
			monster.QuestMonsterID = questMonsterID
			monster.IsFinalObjective = slot.IsFinalObjective
		case PatchOpRemove:
			monster.QuestMonsterID = ""
			monster.IsFinalObjective = false
		default:
			return errors.Validationf("patch %s: unknown op %q", patch.ID, patch.Op)
		}
		return nil
	}

	if questEventID, ok := patch.Payload["quest_event_id"].(string); ok && questEventID != "" {
		tile, _, _, err := s.patchTile(state, patch)
		if err != nil {
			return err
		}
		if tile == nil || !tile.HasEvent {
			return errors.NotFoundf("patch %s: tile %s has no event to bind", patch.ID, patch.Tile)
		}
		found := false
		for _, ev := range quest.SpecialEvents {
			if ev.ID == questEventID {
				found = true
				break
			}
		}
		if !found {
			return errors.NotFoundf("patch %s: quest event %q not in quest %s", patch.ID, questEventID, questID)
		}
		switch patch.Op {
		case PatchOpAdd, PatchOpUpdate:
			if tile.EventData == nil {
				tile.EventData = make(map[string]any)
			}
			tile.EventData["quest_event_id"] = questEventID
		case PatchOpRemove:
			delete(tile.EventData, "quest_event_id")
		default:
			return errors.Validationf("patch %s: unknown op %q", patch.ID, patch.Op)
		}
		return nil
	}
	return errors.Validationf("patch %s: quest binding needs quest_monster_id or quest_event_id", patch.ID)
}

// applyRoomPatch carves or retypes a room. Removal is not supported;
// generators reshape rooms through tile patches instead.
func (s *service) applyRoomPatch(state *entities.GameState, patch *Patch) error {
	gameMap := state.CurrentMap

	switch patch.Op {
	case PatchOpAdd:
		x, okX := toInt(patch.Payload["x"])
		y, okY := toInt(patch.Payload["y"])
		width, okW := toInt(patch.Payload["width"])
		height, okH := toInt(patch.Payload["height"])
		if !okX || !okY || !okW || !okH || width < 1 || height < 1 {
			return errors.Validationf("patch %s: room add requires x, y, width, height", patch.ID)
		}
		if !gameMap.InBounds(x, y) || !gameMap.InBounds(x+width-1, y+height-1) {
			return errors.Validationf("patch %s: room %d,%d %dx%d outside map bounds", patch.ID, x, y, width, height)
		}
		roomID, _ := patch.Payload["room_id"].(string)
		roomType, _ := patch.Payload["room_type"].(string)
		for ty := y; ty < y+height; ty++ {
			for tx := x; tx < x+width; tx++ {
				tile := gameMap.TileAt(tx, ty)
				if tile == nil {
					tile = &entities.MapTile{X: tx, Y: ty}
					gameMap.SetTile(tile)
				}
				if tile.Terrain == entities.TerrainStairsUp || tile.Terrain == entities.TerrainStairsDown {
					continue
				}
				tile.Terrain = entities.TerrainFloor
				tile.RoomID = roomID
				tile.RoomType = roomType
			}
		}
		return nil

	case PatchOpUpdate:
		roomID, _ := patch.Payload["room_id"].(string)
		roomType, _ := patch.Payload["room_type"].(string)
		if roomID == "" || roomType == "" {
			return errors.Validationf("patch %s: room update requires room_id and room_type", patch.ID)
		}
		touched := 0
		for _, tile := range gameMap.Tiles {
			if tile.RoomID == roomID {
				tile.RoomType = roomType
				touched++
			}
		}
		if touched == 0 {
			return errors.NotFoundf("patch %s: room %q has no tiles", patch.ID, roomID)
		}
		return nil
	}
	return errors.Validationf("patch %s: room op %q not supported", patch.ID, patch.Op)
}

// applyCorridorPatch carves an L-shaped corridor between two keys,
// converting walls to floor and leaving every other terrain alone.
func (s *service) applyCorridorPatch(state *entities.GameState, patch *Patch) error {
	if patch.Op != PatchOpAdd {
		return errors.Validationf("patch %s: corridor op %q not supported", patch.ID, patch.Op)
	}
	fromKey, _ := patch.Payload["from"].(string)
	toKey, _ := patch.Payload["to"].(string)
	fromX, fromY, err := entities.ParseTileKey(fromKey)
	if err != nil {
		return errors.Validationf("patch %s: invalid corridor endpoint %q", patch.ID, fromKey)
	}
	toX, toY, err := entities.ParseTileKey(toKey)
	if err != nil {
		return errors.Validationf("patch %s: invalid corridor endpoint %q", patch.ID, toKey)
	}
	gameMap := state.CurrentMap
	if !gameMap.InBounds(fromX, fromY) || !gameMap.InBounds(toX, toY) {
		return errors.Validationf("patch %s: corridor endpoints outside map bounds", patch.ID)
	}

	carve := func(x, y int) {
		tile := gameMap.TileAt(x, y)
		if tile == nil {
			tile = &entities.MapTile{X: x, Y: y, Terrain: entities.TerrainWall}
			gameMap.SetTile(tile)
		}
		if tile.Terrain == entities.TerrainWall {
			tile.Terrain = entities.TerrainFloor
		}
	}
	for x := minInt(fromX, toX); x <= maxInt(fromX, toX); x++ {
		carve(x, fromY)
	}
	for y := minInt(fromY, toY); y <= maxInt(fromY, toY); y++ {
		carve(toX, y)
	}
	return nil
}

// postCheckDiagnostics validates the whole-map invariants after a
// batch; any returned diagnostic forces a rollback to the first snapshot.
func (s *service) postCheckDiagnostics(state *entities.GameState) []string {
	var diags []string
	gameMap := state.CurrentMap

	visited, unreachable := walkableReachability(gameMap)
	if unreachable > 0 {
		diags = append(diags, fmt.Sprintf("%s: connectivity broken, %d walkable tiles unreachable", PostCheckFailed, unreachable))
	}

	if gameMap.Depth == 1 && gameMap.FindTerrain(entities.TerrainStairsUp) != nil {
		diags = append(diags, fmt.Sprintf("%s: stairs_up present on depth 1", PostCheckFailed))
	}
	if gameMap.MaxFloor > 0 && gameMap.Depth == gameMap.MaxFloor && gameMap.FindTerrain(entities.TerrainStairsDown) != nil {
		diags = append(diags, fmt.Sprintf("%s: stairs_down present on max depth %d", PostCheckFailed, gameMap.MaxFloor))
	}

	for key, tile := range gameMap.Tiles {
		if tile.CharacterID != "" && tile.HasEvent {
			diags = append(diags, fmt.Sprintf("%s: tile %s holds both monster %s and event %s", PostCheckFailed, key, tile.CharacterID, tile.EventType))
		}
	}

	if quest := state.ActiveQuest(); quest != nil {
		for _, ev := range quest.SpecialEvents {
			if !ev.IsMandatory || ev.IsTriggered {
				continue
			}
			key, placed := findQuestEventTile(gameMap, ev.ID)
			if placed && !visited[key] {
				diags = append(diags, fmt.Sprintf("%s: mandatory event %s on unreachable tile %s", PostCheckFailed, ev.ID, key))
			}
		}
		if quest.ProgressPlan != nil {
			for bucket := range quest.ProgressPlan.Budget {
				budget, _ := quest.BudgetFor(bucket)
				if sum := quest.LedgerSum(bucket); sum > budget {
					diags = append(diags, fmt.Sprintf("%s: progress budget exceeded for bucket %q: %.2f > %.2f", PostCheckFailed, bucket, sum, budget))
				}
			}
		}
	}
	return diags
}

// walkableReachability BFS-visits walkable tiles from the first one in
// scan order and reports how many walkable tiles were missed.
func walkableReachability(m *entities.GameMap) (map[string]bool, int) {
	visited := make(map[string]bool)
	var start *entities.MapTile
	total := 0
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if t := m.TileAt(x, y); t != nil && t.Walkable() {
				total++
				if start == nil {
					start = t
				}
			}
		}
	}
	if start == nil {
		return visited, 0
	}

	queue := []*entities.MapTile{start}
	visited[start.Key()] = true
	for len(queue) > 0 {
		tile := queue[0]
		queue = queue[1:]
		for _, d := range [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			next := m.TileAt(tile.X+d[0], tile.Y+d[1])
			if next == nil || !next.Walkable() || visited[next.Key()] {
				continue
			}
			visited[next.Key()] = true
			queue = append(queue, next)
		}
	}
	return visited, total - len(visited)
}

func findQuestEventTile(m *entities.GameMap, questEventID string) (string, bool) {
	for key, tile := range m.Tiles {
		if !tile.HasEvent || tile.EventData == nil {
			continue
		}
		if id, ok := tile.EventData["quest_event_id"].(string); ok && id == questEventID {
			return key, true
		}
	}
	return "", false
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
