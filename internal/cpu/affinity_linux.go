//go:build linux

package cpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func bind(i int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(i)
	// pid 0 targets the calling thread
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("cpu: sched_setaffinity core %d: %w", i, err)
	}
	return nil
}

// Current returns the cores the calling thread may run on.
func Current() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("cpu: sched_getaffinity: %w", err)
	}
	cores := make([]int, 0, set.Count())
	for i := 0; i < Cores(); i++ {
		if set.IsSet(i) {
			cores = append(cores, i)
		}
	}
	return cores, nil
}
