// Package cache holds the in-memory launch lookup shared by the hot
// recording path.
package cache

import (
	"sync"

	"github.com/rangelab/trajector/pkg/core"
)

// LaunchCache keeps the active session's launches in memory so sample and
// landing handlers never read the database while trajectories are in
// flight. Reads far outnumber writes.
type LaunchCache struct {
	mu       sync.RWMutex
	launches map[uint16]core.Launch
}

func NewLaunchCache() *LaunchCache {
	return &LaunchCache{launches: make(map[uint16]core.Launch)}
}

// Reset drops everything; called at session boundaries.
func (c *LaunchCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.launches = make(map[uint16]core.Launch)
}

func (c *LaunchCache) Get(trajectoryID uint16) (core.Launch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.launches[trajectoryID]
	return l, ok
}

func (c *LaunchCache) Add(l core.Launch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.launches[l.TrajectoryID] = l
}

// Len reports how many launches the session has seen so far.
func (c *LaunchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.launches)
}
