// Package debounce detects double activations of the manual start control.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the double-activation window.
const DefaultWindow = 500 * time.Millisecond

// Result is the outcome of registering an activation.
type Result int

const (
	// None means the activation opened a new burst.
	None Result = iota
	// Immediate means a second activation arrived inside the window.
	Immediate
)

func (r Result) String() string {
	if r == Immediate {
		return "immediate"
	}
	return "none"
}

// Debouncer tracks the first activation of the current burst.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	first   time.Time
	pending bool
}

// New returns a debouncer with the given window; non-positive values use
// DefaultWindow.
func New(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{window: window}
}

// Window reports the configured window.
func (d *Debouncer) Window() time.Duration { return d.window }

// Register records an activation at now. A second activation strictly inside
// the window of the first returns Immediate and clears the burst; any other
// activation starts a new burst and returns None.
func (d *Debouncer) Register(now time.Time) Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending && now.Sub(d.first) < d.window && !now.Before(d.first) {
		d.pending = false
		d.first = time.Time{}
		return Immediate
	}
	d.first = now
	d.pending = true
	return None
}

// Reset forgets any open burst.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	d.pending = false
	d.first = time.Time{}
	d.mu.Unlock()
}
