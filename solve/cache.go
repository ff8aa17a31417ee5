package solve

import (
	"sync"
)

// Cache stores the final results of goals. It can be shared by solvers
// running on different goroutines, as long as they use the same Database.
// A nil *Cache stores nothing.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Solution
}

func NewCache() *Cache {
	return &Cache{entries: map[string]Solution{}}
}

func (c *Cache) Get(goal UCanonicalGoal) (Solution, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	solution, ok := c.entries[goal.Key()]
	return solution, ok
}

func (c *Cache) Insert(goal UCanonicalGoal, solution Solution) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[goal.Key()] = solution
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
