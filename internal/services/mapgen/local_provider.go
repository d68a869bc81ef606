package mapgen

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/uuid"
)

const (
	defaultWidth  = 20
	defaultHeight = 15
	defaultFloors = 10

	maxRoomAttempts = 200
	maxRepairPasses = 8
)

var floorThemes = []string{
	"catacombs",
	"fungal caverns",
	"drowned halls",
	"ember vaults",
	"howling warrens",
}

// room is a carved rectangle tracked during generation.
type room struct {
	id   string
	x, y int
	w, h int
	role string
}

func (r *room) centerX() int { return r.x + r.w/2 }
func (r *room) centerY() int { return r.y + r.h/2 }

func (r *room) overlaps(o *room, gap int) bool {
	return r.x-gap < o.x+o.w && o.x-gap < r.x+r.w &&
		r.y-gap < o.y+o.h && o.y-gap < r.y+r.h
}

// LocalProvider is the procedural generator behind the legacy chain.
type LocalProvider struct {
	log *zap.Logger
	ids uuid.Generator
}

// LocalProviderConfig holds configuration for the local provider.
type LocalProviderConfig struct {
	Logger        *zap.Logger
	UUIDGenerator uuid.Generator
}

// NewLocalProvider creates the procedural floor generator.
func NewLocalProvider(cfg *LocalProviderConfig) *LocalProvider {
	p := &LocalProvider{}
	if cfg != nil {
		p.log = cfg.Logger
		p.ids = cfg.UUIDGenerator
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.ids == nil {
		p.ids = uuid.NewGoogleUUIDGenerator()
	}
	return p
}

// Generate implements Provider. The same seed, quest, and dimensions
// reproduce the same floor.
func (p *LocalProvider) Generate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "map generation cancelled")
	}

	width, height := input.Width, input.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}
	if width < 8 || height < 8 {
		return nil, errors.InvalidArgumentf("map %dx%d is too small to carve rooms", width, height)
	}
	depth := input.Depth
	if depth < 1 {
		depth = 1
	}
	maxFloor := input.MaxFloor
	if maxFloor <= 0 {
		maxFloor = defaultFloors
	}
	if maxFloor < depth {
		maxFloor = depth
	}

	rng := rand.New(rand.NewSource(input.Seed))
	b := &floorBuilder{
		rng:      rng,
		req:      AnalyzeQuest(input.Quest, depth),
		quest:    input.Quest,
		depth:    depth,
		maxFloor: maxFloor,
		report:   &entities.ValidationReport{},
		m: &entities.GameMap{
			ID:         p.ids.New(),
			Name:       fmt.Sprintf("Floor %d", depth),
			Width:      width,
			Height:     height,
			Depth:      depth,
			MaxFloor:   maxFloor,
			FloorTheme: floorThemes[rng.Intn(len(floorThemes))],
			Tiles:      make(map[string]*entities.MapTile, width*height),
		},
	}

	b.fillWalls()
	if err := b.placeRooms(); err != nil {
		return nil, err
	}
	b.carveCorridors()
	b.assignRoles()
	b.placeStairs()
	b.placeDoors()
	b.placeTrapsAndTreasure()
	b.placeEvents()
	b.validateAndRepair()

	hints := b.monsterHints(input.PlayerLevel)
	b.m.Generation = &entities.GenerationMeta{
		Provider:        ProviderLocal,
		Chain:           ChainLegacy,
		Seed:            input.Seed,
		LocalValidation: b.report,
	}

	p.log.Info("local map generated",
		zap.String("map_id", b.m.ID),
		zap.Int("depth", depth),
		zap.Int("rooms", len(b.rooms)),
		zap.String("layout", b.req.LayoutStyle),
		zap.Bool("connectivity_ok", b.report.ConnectivityOK),
		zap.Int("repaired_corridors", b.report.RepairedCorridors))

	return &GenerateOutput{Map: b.m, Hints: hints}, nil
}

// floorBuilder carries one generation run's working state.
type floorBuilder struct {
	m        *entities.GameMap
	rng      *rand.Rand
	req      *MapRequirements
	quest    *entities.Quest
	rooms    []*room
	report   *entities.ValidationReport
	depth    int
	maxFloor int
}

func (b *floorBuilder) fillWalls() {
	for y := 0; y < b.m.Height; y++ {
		for x := 0; x < b.m.Width; x++ {
			b.m.SetTile(&entities.MapTile{X: x, Y: y, Terrain: entities.TerrainWall})
		}
	}
}

func (b *floorBuilder) placeRooms() error {
	target := b.req.MinRooms
	if span := b.req.MaxRooms - b.req.MinRooms; span > 0 {
		target += b.rng.Intn(span + 1)
	}

	for attempt := 0; attempt < maxRoomAttempts && len(b.rooms) < target; attempt++ {
		w := 3 + b.rng.Intn(4)
		h := 3 + b.rng.Intn(3)
		if w >= b.m.Width-2 || h >= b.m.Height-2 {
			continue
		}
		cand := &room{
			id: fmt.Sprintf("room-%d", len(b.rooms)),
			x:  1 + b.rng.Intn(b.m.Width-w-1),
			y:  1 + b.rng.Intn(b.m.Height-h-1),
			w:  w,
			h:  h,
		}
		clear := true
		for _, other := range b.rooms {
			if cand.overlaps(other, 1) {
				clear = false
				break
			}
		}
		if !clear {
			continue
		}
		b.rooms = append(b.rooms, cand)
		for y := cand.y; y < cand.y+cand.h; y++ {
			for x := cand.x; x < cand.x+cand.w; x++ {
				t := b.m.TileAt(x, y)
				t.Terrain = entities.TerrainFloor
				t.RoomID = cand.id
			}
		}
	}

	if len(b.rooms) < 2 {
		return errors.Internalf("placed only %d rooms on a %dx%d floor", len(b.rooms), b.m.Width, b.m.Height)
	}
	return nil
}

// carveCorridors connects rooms per the requested layout: a minimum
// spanning tree plus loop extras (standard), every room to the entrance
// (hub), or a chain (linear).
func (b *floorBuilder) carveCorridors() {
	type edge struct{ from, to int }
	var edges []edge

	switch b.req.LayoutStyle {
	case LayoutLinear:
		for i := 0; i+1 < len(b.rooms); i++ {
			edges = append(edges, edge{i, i + 1})
		}
	case LayoutHub:
		for i := 1; i < len(b.rooms); i++ {
			edges = append(edges, edge{0, i})
		}
	default:
		// Prim's MST over Manhattan distance between room centers.
		connected := map[int]bool{0: true}
		for len(connected) < len(b.rooms) {
			bestFrom, bestTo, bestDist := -1, -1, int(^uint(0)>>1)
			for from := range connected {
				for to := range b.rooms {
					if connected[to] {
						continue
					}
					d := absInt(b.rooms[from].centerX()-b.rooms[to].centerX()) +
						absInt(b.rooms[from].centerY()-b.rooms[to].centerY())
					if d < bestDist {
						bestFrom, bestTo, bestDist = from, to, d
					}
				}
			}
			connected[bestTo] = true
			edges = append(edges, edge{bestFrom, bestTo})
		}
		extras := 1 + len(b.rooms)/4
		for i := 0; i < extras; i++ {
			from := b.rng.Intn(len(b.rooms))
			to := b.rng.Intn(len(b.rooms))
			if from != to {
				edges = append(edges, edge{from, to})
			}
		}
	}

	for _, e := range edges {
		b.carveL(
			b.rooms[e.from].centerX(), b.rooms[e.from].centerY(),
			b.rooms[e.to].centerX(), b.rooms[e.to].centerY(),
			b.rng.Intn(2) == 0)
	}
}

// carveL cuts an L corridor between two points, flipping only walls.
func (b *floorBuilder) carveL(x1, y1, x2, y2 int, horizontalFirst bool) {
	carve := func(x, y int) {
		if t := b.m.TileAt(x, y); t != nil && t.Terrain == entities.TerrainWall {
			t.Terrain = entities.TerrainFloor
		}
	}
	if horizontalFirst {
		for x := minInt(x1, x2); x <= maxInt(x1, x2); x++ {
			carve(x, y1)
		}
		for y := minInt(y1, y2); y <= maxInt(y1, y2); y++ {
			carve(x2, y)
		}
		return
	}
	for y := minInt(y1, y2); y <= maxInt(y1, y2); y++ {
		carve(x1, y)
	}
	for x := minInt(x1, x2); x <= maxInt(x1, x2); x++ {
		carve(x, y2)
	}
}

func (b *floorBuilder) assignRoles() {
	b.rooms[0].role = entities.RoomEntrance
	if b.req.NeedsBossRoom {
		b.rooms[len(b.rooms)-1].role = entities.RoomBoss
	}

	unassigned := func() []*room {
		var out []*room
		for _, r := range b.rooms {
			if r.role == "" {
				out = append(out, r)
			}
		}
		return out
	}

	if b.req.NeedsTreasureRoom {
		if free := unassigned(); len(free) > 0 {
			free[b.rng.Intn(len(free))].role = entities.RoomTreasure
		}
	}
	for i := 0; i < b.req.NeedsSpecialRooms; i++ {
		free := unassigned()
		if len(free) == 0 {
			break
		}
		free[b.rng.Intn(len(free))].role = entities.RoomSpecial
	}
	for _, r := range unassigned() {
		r.role = entities.RoomNormal
	}

	for _, r := range b.rooms {
		for y := r.y; y < r.y+r.h; y++ {
			for x := r.x; x < r.x+r.w; x++ {
				b.m.TileAt(x, y).RoomType = r.role
			}
		}
	}
}

// placeStairs puts stairs up at the entrance only below the surface, and
// stairs down in the boss (or last) room only above the bottom floor.
func (b *floorBuilder) placeStairs() {
	if b.depth > 1 {
		entrance := b.rooms[0]
		b.m.TileAt(entrance.centerX(), entrance.centerY()).Terrain = entities.TerrainStairsUp
	}
	if b.depth < b.maxFloor {
		exit := b.rooms[len(b.rooms)-1]
		for _, r := range b.rooms {
			if r.role == entities.RoomBoss {
				exit = r
				break
			}
		}
		t := b.m.TileAt(exit.centerX(), exit.centerY())
		if t.Terrain == entities.TerrainStairsUp {
			// single shared room; shift one tile so both stairs exist
			t = b.m.TileAt(exit.centerX()+1, exit.centerY())
		}
		t.Terrain = entities.TerrainStairsDown
	}
}

// placeDoors converts corridor tiles that touch a room and still have a
// wall neighbor into doors.
func (b *floorBuilder) placeDoors() {
	for y := 0; y < b.m.Height; y++ {
		for x := 0; x < b.m.Width; x++ {
			t := b.m.TileAt(x, y)
			if t.Terrain != entities.TerrainFloor || t.RoomID != "" {
				continue
			}
			touchesRoom, wallNeighbors := false, 0
			for _, d := range [][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
				n := b.m.TileAt(x+d[0], y+d[1])
				if n == nil {
					continue
				}
				if n.RoomID != "" && n.Walkable() {
					touchesRoom = true
				}
				if n.Terrain == entities.TerrainWall {
					wallNeighbors++
				}
			}
			if touchesRoom && wallNeighbors >= 1 {
				t.Terrain = entities.TerrainDoor
			}
		}
	}
}

func (b *floorBuilder) placeTrapsAndTreasure() {
	traps := minInt(4, 1+b.rng.Intn(2)+b.depth/3)
	for i := 0; i < traps; i++ {
		t := b.pickFloorTile(func(t *entities.MapTile) bool {
			return t.RoomType != entities.RoomEntrance
		})
		if t == nil {
			break
		}
		t.Terrain = entities.TerrainTrap
		t.EventData = b.trapPayload()
	}

	treasures := 1 + b.rng.Intn(2)
	if b.req.NeedsTreasureRoom {
		treasures++
	}
	for i := 0; i < minInt(treasures, 3); i++ {
		t := b.pickFloorTile(func(t *entities.MapTile) bool {
			return !b.req.NeedsTreasureRoom || t.RoomType == entities.RoomTreasure
		})
		if t == nil {
			t = b.pickFloorTile(nil)
		}
		if t == nil {
			break
		}
		t.Terrain = entities.TerrainTreasure
	}
}

// trapPayload builds a trap descriptor that passes event validation.
func (b *floorBuilder) trapPayload() map[string]any {
	kinds := []string{"spike_pit", "poison_dart", "alarm_rune", "snare"}
	damage := "1d6"
	if b.depth >= 4 {
		damage = "2d6"
	}
	return map[string]any{
		"trap_type":   kinds[b.rng.Intn(len(kinds))],
		"detect_dc":   8 + b.depth + b.rng.Intn(5),
		"disarm_dc":   9 + b.depth + b.rng.Intn(5),
		"save_dc":     8 + b.depth + b.rng.Intn(4),
		"damage_dice": damage,
	}
}

// placeEvents lays down pending quest events for this depth first, then
// a bounded number of random typed events.
func (b *floorBuilder) placeEvents() {
	if b.quest != nil {
		for _, ev := range b.quest.SpecialEvents {
			if ev.IsTriggered {
				continue
			}
			if ev.LocationHint != b.depth && ev.LocationHint != 0 {
				continue
			}
			if ev.IsMandatory {
				b.report.MandatoryEventsExpected++
			}
			t := b.pickFloorTile(func(t *entities.MapTile) bool {
				return t.RoomType == entities.RoomSpecial
			})
			if t == nil {
				t = b.pickFloorTile(nil)
			}
			if t == nil {
				b.report.Warnings = append(b.report.Warnings,
					fmt.Sprintf("no tile left for quest event %s", ev.ID))
				continue
			}
			t.HasEvent = true
			t.EventType = ev.EventType
			if t.EventType == "" {
				t.EventType = entities.EventStory
			}
			t.EventData = map[string]any{"quest_event_id": ev.ID}
			for k, v := range ev.EventData {
				t.EventData[k] = v
			}
			if ev.IsMandatory {
				b.report.MandatoryEventsPlaced++
			}
		}
	}

	for i, n := 0, 1+b.rng.Intn(3); i < n; i++ {
		t := b.pickFloorTile(func(t *entities.MapTile) bool {
			return t.RoomType != entities.RoomEntrance
		})
		if t == nil {
			break
		}
		t.HasEvent = true
		switch roll := b.rng.Intn(100); {
		case roll < 35:
			t.EventType = entities.EventCombat
			t.EventData = map[string]any{"difficulty": b.difficulty()}
		case roll < 60:
			t.EventType = entities.EventTreasure
			t.EventData = map[string]any{"loot_tier": 1 + b.depth/3}
		case roll < 75:
			t.EventType = entities.EventTrap
			t.EventData = b.trapPayload()
		case roll < 90:
			t.EventType = entities.EventStory
			t.EventData = map[string]any{"theme": b.m.FloorTheme}
		default:
			t.EventType = entities.EventMystery
			t.EventData = map[string]any{"hint": "something stirs here"}
			t.IsEventHidden = true
		}
	}
}

// pickFloorTile returns a random plain floor tile passing the filter, or
// nil when none qualifies.
func (b *floorBuilder) pickFloorTile(filter func(*entities.MapTile) bool) *entities.MapTile {
	var candidates []*entities.MapTile
	for y := 0; y < b.m.Height; y++ {
		for x := 0; x < b.m.Width; x++ {
			t := b.m.TileAt(x, y)
			if t.Terrain != entities.TerrainFloor || t.HasEvent || t.RoomID == "" {
				continue
			}
			if filter != nil && !filter(t) {
				continue
			}
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[b.rng.Intn(len(candidates))]
}

// validateAndRepair BFS-checks that stairs and mandatory quest events are
// reachable from the floor's reference start, carving repair corridors
// for anything cut off. Repair never flips a stairs tile.
func (b *floorBuilder) validateAndRepair() {
	start := b.referenceStart()
	if start == nil {
		b.report.Warnings = append(b.report.Warnings, "no walkable reference start")
		return
	}

	for pass := 0; pass < maxRepairPasses; pass++ {
		unreached := b.unreachedTargets(start)
		if len(unreached) == 0 {
			break
		}
		target := unreached[0]
		src := b.nearestReachable(start, target)
		if src == nil {
			break
		}
		b.repairCarve(src.X, src.Y, target.X, target.Y)
		b.report.RepairedCorridors++
	}

	remaining := b.unreachedTargets(start)
	b.report.ConnectivityOK = len(remaining) == 0
	b.report.UnreachableTargets = len(remaining)
	for _, t := range remaining {
		b.report.Warnings = append(b.report.Warnings,
			fmt.Sprintf("target at %d,%d unreachable after repair", t.X, t.Y))
	}
}

func (b *floorBuilder) referenceStart() *entities.MapTile {
	if t := b.m.FindTerrain(entities.TerrainStairsUp); t != nil {
		return t
	}
	entrance := b.rooms[0]
	if t := b.m.TileAt(entrance.centerX(), entrance.centerY()); t != nil && t.Walkable() {
		return t
	}
	return b.m.FindTerrain(entities.TerrainFloor)
}

// keyTargets are the tiles the floor is broken without.
func (b *floorBuilder) keyTargets() []*entities.MapTile {
	var targets []*entities.MapTile
	for y := 0; y < b.m.Height; y++ {
		for x := 0; x < b.m.Width; x++ {
			t := b.m.TileAt(x, y)
			switch {
			case t.Terrain == entities.TerrainStairsUp || t.Terrain == entities.TerrainStairsDown:
				targets = append(targets, t)
			case t.HasEvent && t.EventData["quest_event_id"] != nil:
				targets = append(targets, t)
			}
		}
	}
	return targets
}

func (b *floorBuilder) unreachedTargets(start *entities.MapTile) []*entities.MapTile {
	reachable := b.bfs(start)
	var out []*entities.MapTile
	for _, t := range b.keyTargets() {
		if !reachable[t.Key()] {
			out = append(out, t)
		}
	}
	return out
}

func (b *floorBuilder) bfs(start *entities.MapTile) map[string]bool {
	visited := map[string]bool{start.Key(): true}
	queue := []*entities.MapTile{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range [][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			n := b.m.TileAt(cur.X+d[0], cur.Y+d[1])
			if n == nil || visited[n.Key()] || !n.Walkable() {
				continue
			}
			visited[n.Key()] = true
			queue = append(queue, n)
		}
	}
	return visited
}

func (b *floorBuilder) nearestReachable(start, target *entities.MapTile) *entities.MapTile {
	reachable := b.bfs(start)
	var best *entities.MapTile
	bestDist := int(^uint(0) >> 1)
	for y := 0; y < b.m.Height; y++ {
		for x := 0; x < b.m.Width; x++ {
			if !reachable[entities.TileKey(x, y)] {
				continue
			}
			d := absInt(x-target.X) + absInt(y-target.Y)
			if d < bestDist {
				best = b.m.TileAt(x, y)
				bestDist = d
			}
		}
	}
	return best
}

// repairCarve cuts an L corridor flipping only walls, leaving stairs and
// placed features untouched.
func (b *floorBuilder) repairCarve(x1, y1, x2, y2 int) {
	carve := func(x, y int) {
		t := b.m.TileAt(x, y)
		if t != nil && t.Terrain == entities.TerrainWall {
			t.Terrain = entities.TerrainFloor
		}
	}
	for x := minInt(x1, x2); x <= maxInt(x1, x2); x++ {
		carve(x, y1)
	}
	for y := minInt(y1, y2); y <= maxInt(y1, y2); y++ {
		carve(x2, y)
	}
}

func (b *floorBuilder) difficulty() string {
	switch {
	case b.depth < 3:
		return "easy"
	case b.depth < 6:
		return "medium"
	default:
		return "hard"
	}
}

// monsterHints emits spawn points with room-role-aware distribution.
func (b *floorBuilder) monsterHints(playerLevel int) *MonsterHints {
	if playerLevel < 1 {
		playerLevel = 1
	}
	hints := &MonsterHints{
		RecommendedLevel:    playerLevel + b.depth/3,
		EncounterDifficulty: b.difficulty(),
		RoomIntents:         make(map[string]string, len(b.rooms)),
	}

	for _, r := range b.rooms {
		hints.RoomIntents[r.id] = r.role
		switch r.role {
		case entities.RoomEntrance:
			continue
		case entities.RoomBoss:
			x, y := r.centerX(), r.centerY()
			// keep the boss off the stairs so descent stays unblocked
			if t := b.m.TileAt(x, y); t != nil && t.Terrain != entities.TerrainFloor {
				if alt := b.roomSpawnTile(r); alt != nil {
					x, y = alt.X, alt.Y
				}
			}
			hints.SpawnPoints = append(hints.SpawnPoints, &SpawnPoint{
				X: x, Y: y, Role: SpawnBoss, RoomID: r.id,
			})
		default:
			count := 1 + b.rng.Intn(2)
			for i := 0; i < count; i++ {
				t := b.roomSpawnTile(r)
				if t == nil {
					break
				}
				hints.SpawnPoints = append(hints.SpawnPoints, &SpawnPoint{
					X: t.X, Y: t.Y, Role: SpawnEncounter, RoomID: r.id,
				})
			}
		}
	}

	hints.LLMContext = fmt.Sprintf(
		"Floor %d of %d (%s): %d rooms in a %s layout, %d spawn points, difficulty %s.",
		b.depth, b.maxFloor, b.m.FloorTheme, len(b.rooms), b.req.LayoutStyle,
		len(hints.SpawnPoints), hints.EncounterDifficulty)
	return hints
}

func (b *floorBuilder) roomSpawnTile(r *room) *entities.MapTile {
	for attempt := 0; attempt < 10; attempt++ {
		x := r.x + b.rng.Intn(r.w)
		y := r.y + b.rng.Intn(r.h)
		t := b.m.TileAt(x, y)
		if t != nil && t.Terrain == entities.TerrainFloor && !t.HasEvent {
			return t
		}
	}
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
