// Package slot assigns the numeric session identifiers carried on the wire.
// Identifiers are reused: a departing player's slot becomes available again,
// and the lowest free slot is always handed out first.
package slot

import (
	"errors"
	"sync"
)

// ErrExhausted is returned when every slot is in use.
var ErrExhausted = errors.New("slot allocator exhausted")

// Allocator hands out slots in [1, max], smallest free first.
type Allocator struct {
	mu    sync.Mutex
	max   int
	used  map[int]struct{}
	owner map[int]string // slot -> username, for diagnostics
}

// NewAllocator creates an allocator for slots 1..max.
func NewAllocator(max int) *Allocator {
	return &Allocator{
		max:   max,
		used:  make(map[int]struct{}),
		owner: make(map[int]string),
	}
}

// Acquire reserves the smallest free slot for owner.
func (a *Allocator) Acquire(owner string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for s := 1; s <= a.max; s++ {
		if _, taken := a.used[s]; !taken {
			a.used[s] = struct{}{}
			a.owner[s] = owner
			return s, nil
		}
	}
	return 0, ErrExhausted
}

// Release frees a slot. Releasing a free or out-of-range slot is a no-op.
func (a *Allocator) Release(s int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, s)
	delete(a.owner, s)
}

// Owner returns the owner recorded for a slot, if any.
func (a *Allocator) Owner(s int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.owner[s]
	return o, ok
}

// InUse reports the number of allocated slots.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

// Max returns the highest slot this allocator will hand out.
func (a *Allocator) Max() int {
	return a.max
}
