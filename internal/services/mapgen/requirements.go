package mapgen

import "github.com/labyrinthia/engine/internal/entities"

// AnalyzeQuest derives layout requirements from the active quest. A nil
// quest yields the default exploratory layout.
func AnalyzeQuest(quest *entities.Quest, depth int) *MapRequirements {
	req := &MapRequirements{
		MinRooms:    4,
		MaxRooms:    8,
		LayoutStyle: LayoutStandard,
	}
	if quest == nil {
		return req
	}

	if final := quest.FinalObjective(); final != nil {
		bossFloor := final.Floor
		if bossFloor == 0 {
			bossFloor = quest.FinalFloor()
		}
		req.NeedsBossRoom = bossFloor == depth
	}

	for _, ev := range quest.SpecialEvents {
		if ev.IsTriggered {
			continue
		}
		if ev.LocationHint == depth || ev.LocationHint == 0 {
			req.NeedsSpecialRooms++
		}
	}
	if req.NeedsSpecialRooms > 0 {
		if want := req.NeedsSpecialRooms + 2; want > req.MinRooms {
			req.MinRooms = want
		}
		if req.MinRooms > req.MaxRooms {
			req.MaxRooms = req.MinRooms + 2
		}
	}

	req.NeedsTreasureRoom = questWantsTreasure(quest)

	switch {
	case req.NeedsBossRoom && quest.ProgressPlan != nil &&
		quest.ProgressPlan.CompletionPolicy == entities.PolicySingleTarget:
		req.LayoutStyle = LayoutLinear
	case req.NeedsSpecialRooms >= 3:
		req.LayoutStyle = LayoutHub
	}
	return req
}

func questWantsTreasure(quest *entities.Quest) bool {
	if quest.QuestType == "treasure_hunt" {
		return true
	}
	for _, ev := range quest.SpecialEvents {
		if ev.EventType == entities.EventTreasure && !ev.IsTriggered {
			return true
		}
	}
	return false
}
