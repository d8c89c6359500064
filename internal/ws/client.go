package ws

import (
	"sync"

	"github.com/DoyleJ11/metachess-backend/internal/rules"
	"github.com/DoyleJ11/metachess-backend/internal/session"
)

// binding is which (session, side) a connection currently speaks for. It is
// mutated from the reader loop on create/join/reconnect and from the
// registry on rematch redirect, hence the lock.
type binding struct {
	gameID string
	color  rules.Color
	sess   *session.Session
}

type connState struct {
	mu sync.Mutex
	b  binding
}

func (c *connState) get() binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b
}

func (c *connState) set(b binding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.b = b
}

func (c *connState) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.b = binding{}
}
