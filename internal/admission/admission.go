// Package admission enforces single-flight execution per conversation.
package admission

import (
	"sync"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/domain"
)

// Controller admits at most one active run per conversation at any instant.
// Distinct conversations proceed fully in parallel. A second submission for
// a conversation already running fails fast with ErrConversationBusy rather
// than queueing.
type Controller struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewController creates an empty admission controller.
func NewController() *Controller {
	return &Controller{active: make(map[string]struct{})}
}

// Admit acquires the per-conversation lock. On success it returns a handle
// that releases the lock exactly once, on any exit path.
func (c *Controller) Admit(convID string) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.active[convID]; busy {
		return nil, domain.ErrConversationBusy
	}
	c.active[convID] = struct{}{}
	return &Handle{controller: c, convID: convID}, nil
}

// Active reports whether a run is currently admitted for the conversation.
func (c *Controller) Active(convID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.active[convID]
	return busy
}

// Handle represents one admitted run. Release is idempotent.
type Handle struct {
	controller *Controller
	convID     string
	once       sync.Once
}

// ConvID returns the conversation this handle locks.
func (h *Handle) ConvID() string {
	return h.convID
}

// Release frees the per-conversation lock. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.controller.mu.Lock()
		delete(h.controller.active, h.convID)
		h.controller.mu.Unlock()
	})
}
