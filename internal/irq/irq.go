// Package irq models the two execution contexts of the sensor: one
// interrupt context that runs the scheduler tick to completion, and a
// foreground loop that masks the interrupt around multi-field reads.
package irq

import (
	"sync"

	"go.uber.org/atomic"
)

// Controller serializes interrupt service against foreground critical
// sections. It is the only synchronization primitive the core uses.
type Controller struct {
	mu     sync.Mutex
	masked atomic.Bool
	served atomic.Uint64
}

// New returns an unmasked controller.
func New() *Controller {
	return &Controller{}
}

// Disable masks the interrupt. A pending Serve waits until Enable.
// Calls must not nest.
func (c *Controller) Disable() {
	c.mu.Lock()
	c.masked.Store(true)
}

// Enable unmasks the interrupt.
func (c *Controller) Enable() {
	c.masked.Store(false)
	c.mu.Unlock()
}

// Critical runs fn with the interrupt masked. Keep fn to a handful of reads.
func (c *Controller) Critical(fn func()) {
	c.Disable()
	defer c.Enable()
	fn()
}

// Serve runs an interrupt handler. Handlers never overlap each other or a
// critical section.
func (c *Controller) Serve(isr func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	isr()
	c.served.Inc()
}

// Masked reports whether a critical section is open.
func (c *Controller) Masked() bool {
	return c.masked.Load()
}

// Served returns the number of completed interrupt handlers.
func (c *Controller) Served() uint64 {
	return c.served.Load()
}
