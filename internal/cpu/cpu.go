// Package cpu enumerates cores and pins the calling goroutine's OS thread to
// one of them.
package cpu

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	ErrUnsupported = errors.New("cpu: thread affinity not supported on this platform")
	ErrNoSuchCore  = errors.New("cpu: core index out of range")
)

// Cores returns the number of logical CPUs usable by the process.
func Cores() int {
	return runtime.NumCPU()
}

// Bind locks the calling goroutine to its OS thread and restricts that thread
// to core i. The goroutine stays locked even when binding fails; callers that
// exit afterwards release the thread with the goroutine.
func Bind(i int) error {
	if i < 0 || i >= Cores() {
		return fmt.Errorf("%w: %d of %d", ErrNoSuchCore, i, Cores())
	}
	runtime.LockOSThread()
	return bind(i)
}
