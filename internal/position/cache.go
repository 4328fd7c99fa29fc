package position

import (
	"sort"
	"sync"

	"positionScope/internal/model"
)

// Cache holds the decoded positions of the current owner. Content is only
// ever replaced wholesale by a reconciliation pass.
type Cache struct {
	mu         sync.RWMutex
	generation uint64
	positions  map[string]model.Position
	staked     map[string]model.StakedPosition
}

func NewCache() *Cache {
	return &Cache{
		positions: make(map[string]model.Position),
		staked:    make(map[string]model.StakedPosition),
	}
}

// Generation is the id of the pass allowed to commit next.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Clear empties both sections and starts a new generation, which it
// returns. Passes stamped with an older generation can no longer commit.
func (c *Cache) Clear() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.positions = make(map[string]model.Position)
	c.staked = make(map[string]model.StakedPosition)
	return c.generation
}

// Replace installs the result of the pass stamped gen. It reports false
// and changes nothing when gen is stale.
func (c *Cache) Replace(gen uint64, positions []model.Position, staked []model.StakedPosition) bool {
	nextPositions := make(map[string]model.Position, len(positions))
	for _, pos := range positions {
		if pos.TokenID == nil {
			continue
		}
		pos.ID = model.PositionKey(pos.TokenID)
		nextPositions[pos.ID] = pos
	}
	nextStaked := make(map[string]model.StakedPosition, len(staked))
	for _, pos := range staked {
		if pos.TokenID == nil {
			continue
		}
		pos.ID = model.StakedKey(pos.TokenID)
		nextStaked[pos.ID] = pos
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.positions = nextPositions
	c.staked = nextStaked
	return true
}

// Position looks up a regular position by cache key.
func (c *Cache) Position(key string) (model.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.positions[key]
	return pos, ok
}

// Staked looks up a staked position by cache key.
func (c *Cache) Staked(key string) (model.StakedPosition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.staked[key]
	return pos, ok
}

// Positions returns every regular position ordered by token id.
func (c *Cache) Positions() []model.Position {
	c.mu.RLock()
	out := make([]model.Position, 0, len(c.positions))
	for _, pos := range c.positions {
		out = append(out, pos)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID.Cmp(out[j].TokenID) < 0 })
	return out
}

// StakedPositions returns every staked position ordered by token id.
func (c *Cache) StakedPositions() []model.StakedPosition {
	c.mu.RLock()
	out := make([]model.StakedPosition, 0, len(c.staked))
	for _, pos := range c.staked {
		out = append(out, pos)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID.Cmp(out[j].TokenID) < 0 })
	return out
}
