//go:build linux

package scheduler

import "golang.org/x/sys/unix"

// setAffinity restricts the calling thread to the given core ids.
func setAffinity(cores []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, id := range cores {
		set.Set(id)
	}
	return unix.SchedSetaffinity(0, &set)
}

// clearAffinity restores the calling thread to all cores.
func clearAffinity(total int) error {
	var set unix.CPUSet
	set.Zero()
	for id := 0; id < total; id++ {
		set.Set(id)
	}
	return unix.SchedSetaffinity(0, &set)
}
