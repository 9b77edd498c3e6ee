// Package spin provides a busy-waiting lock for critical sections that only
// touch memory, such as an append or a slice swap. Never hold it across I/O;
// use sync.Mutex for anything that can block.
package spin

import (
	"runtime"
	"sync/atomic"
)

// Mutex is a spin lock. The zero value is unlocked.
type Mutex struct {
	locked atomic.Bool
}

// Lock spins until the lock is acquired, yielding the processor while the
// lock is observed held.
func (m *Mutex) Lock() {
	for {
		if m.locked.CompareAndSwap(false, true) {
			return
		}
		for m.locked.Load() {
			runtime.Gosched()
		}
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	return m.locked.CompareAndSwap(false, true)
}

func (m *Mutex) Unlock() {
	m.locked.Store(false)
}
