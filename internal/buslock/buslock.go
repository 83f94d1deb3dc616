// Package buslock tracks which physical buses currently have an open panel
// session, so that two sessions can never interleave command bytes on the
// same wires.
package buslock

import (
	"errors"
	"fmt"

	"github.com/amancevice/epaper/internal/syncutil"
)

// ErrHeld is returned by Acquire when the bus already has an owner.
var ErrHeld = errors.New("bus already in use")

// Registry is a set of held bus names. The zero value is ready to use.
type Registry struct {
	held map[string]struct{}
	mu   syncutil.Mutex
}

// Default is the process-wide registry used by the panel drivers.
var Default = &Registry{}

// Acquire marks name as held and returns the function that releases it.
// The release function is safe to call more than once.
func (r *Registry) Acquire(name string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.held == nil {
		r.held = make(map[string]struct{})
	}
	if _, ok := r.held[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrHeld, name)
	}
	r.held[name] = struct{}{}

	released := false
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(r.held, name)
	}, nil
}

// Held reports whether name currently has an owner.
func (r *Registry) Held(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[name]
	return ok
}
