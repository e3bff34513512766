//go:build !linux

package scheduler

import "errors"

var errAffinityUnsupported = errors.New("thread affinity not supported on this platform")

func setAffinity(cores []int) error {
	return errAffinityUnsupported
}

func clearAffinity(total int) error {
	return errAffinityUnsupported
}
