//go:build linux

package thermal

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// pmuCounter reads PERF_COUNT_HW_CPU_CYCLES for the calling process
// through perf_event_open. Requires perf_event_paranoid to permit
// unprivileged self-profiling.
type pmuCounter struct {
	fd int
}

func newPMUCounter() (CycleCounter, error) {
	attr := unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_HARDWARE,
		Size:   uint32(unix.PERF_ATTR_SIZE_VER1),
		Config: unix.PERF_COUNT_HW_CPU_CYCLES,
		Bits:   unix.PerfBitDisabled | unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
	}

	fd, err := unix.PerfEventOpen(&attr, 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("perf_event_open: %w", err)
	}

	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to enable cycle counter: %w", err)
	}

	return &pmuCounter{fd: fd}, nil
}

func (c *pmuCounter) ReadCycles() uint64 {
	var buf [8]byte
	n, err := unix.Read(c.fd, buf[:])
	if err != nil || n != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (c *pmuCounter) Supported() bool { return true }

func (c *pmuCounter) Close() error {
	return unix.Close(c.fd)
}
