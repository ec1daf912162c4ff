// Package session tracks which range session and site are currently being
// recorded.
package session

import (
	"sync"

	"github.com/rangelab/trajector/pkg/core"
)

// Context holds the current session and site state
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	site    *core.Site
}

// NewContext creates a new Context with placeholder values
func NewContext() *Context {
	return &Context{
		session: &core.Session{Name: "No session active"},
		site:    &core.Site{Name: "No site configured"},
	}
}

// GetSession returns the current session
func (c *Context) GetSession() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// GetSite returns the current site
func (c *Context) GetSite() *core.Site {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.site
}

// SetSession sets the current session and site
func (c *Context) SetSession(session *core.Session, site *core.Site) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.site = site
}

// Active reports whether a real session has been started.
func (c *Context) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil && c.session.UID != ""
}
