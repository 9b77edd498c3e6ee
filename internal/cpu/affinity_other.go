//go:build !linux

package cpu

func bind(int) error { return ErrUnsupported }

// Current returns the cores the calling thread may run on.
func Current() ([]int, error) { return nil, ErrUnsupported }
