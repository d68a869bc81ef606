package engine

import (
	"container/list"
	"encoding/json"
	"time"

	"github.com/labyrinthia/engine/internal/entities"
)

const (
	replayCacheCap = 256
	replayTTL      = 120 * time.Second
)

// replayableActions are the mutating actions whose completed results
// are cached for idempotent retries.
var replayableActions = map[string]bool{
	entities.ActionNameAttack:    true,
	entities.ActionNameUseItem:   true,
	entities.ActionNameDropItem:  true,
	entities.ActionNameCastSpell: true,
}

type replayEntry struct {
	key         string
	fingerprint string
	result      *entities.ActionResult
	createdAt   time.Time
}

// replayCache is a TTL'd LRU of completed action results, one per live
// game, keyed "{action}:{idempotency_key}". It is only touched under
// the game lock, so it carries no mutex of its own.
type replayCache struct {
	cap     int
	ttl     time.Duration
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

func newReplayCache(cap int, ttl time.Duration) *replayCache {
	return &replayCache{
		cap:     cap,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// get returns the cached result when the key matches, the entry is
// younger than the TTL, and the fingerprint agrees. A mismatched
// fingerprint under the same key is a different action reusing the
// key; the entry is ignored rather than replayed.
func (c *replayCache) get(action, idempotencyKey, fingerprint string, now time.Time) *entities.ActionResult {
	if c == nil || idempotencyKey == "" {
		return nil
	}
	key := action + ":" + idempotencyKey
	el, ok := c.entries[key]
	if !ok {
		return nil
	}
	entry := el.Value.(*replayEntry)
	if now.Sub(entry.createdAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil
	}
	if entry.fingerprint != fingerprint {
		return nil
	}
	c.order.MoveToFront(el)
	return entry.result
}

// put stores a completed result, evicting the oldest entry past cap.
func (c *replayCache) put(action, idempotencyKey, fingerprint string, result *entities.ActionResult, now time.Time) {
	if c == nil || idempotencyKey == "" {
		return
	}
	key := action + ":" + idempotencyKey
	if el, ok := c.entries[key]; ok {
		el.Value = &replayEntry{key: key, fingerprint: fingerprint, result: result, createdAt: now}
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&replayEntry{key: key, fingerprint: fingerprint, result: result, createdAt: now})
	for c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*replayEntry).key)
	}
}

func (c *replayCache) len() int {
	if c == nil {
		return 0
	}
	return c.order.Len()
}

// actionFingerprint canonicalizes the parameters that define an
// action's identity: attack {target_id}; use/drop {item_id, force};
// cast {spell_id, target_id}. encoding/json writes map keys sorted,
// which keeps the fingerprint stable across retries.
func actionFingerprint(action string, params map[string]any) string {
	safe := map[string]any{}
	switch action {
	case entities.ActionNameAttack:
		safe["target_id"] = stringParam(params, "target_id")
	case entities.ActionNameUseItem, entities.ActionNameDropItem:
		safe["item_id"] = stringParam(params, "item_id")
		safe["force"] = boolParam(params, "force")
	case entities.ActionNameCastSpell:
		safe["spell_id"] = stringParam(params, "spell_id")
		safe["target_id"] = stringParam(params, "target_id")
	}
	raw, err := json.Marshal(safe)
	if err != nil {
		return action
	}
	return action + ":" + string(raw)
}
