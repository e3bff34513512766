//go:build !linux

package thermal

import "errors"

func newPMUCounter() (CycleCounter, error) {
	return nil, errors.New("PMU access not supported on this platform")
}
