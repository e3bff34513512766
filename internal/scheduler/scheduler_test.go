package scheduler

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/shellmining/mobilex/internal/hardware"
)

func octaTopology() hardware.CoreTopology {
	return hardware.CoreTopology{
		Total:     8,
		BigIDs:    []int{4, 5, 6, 7},
		LittleIDs: []int{0, 1, 2, 3},
	}
}

func TestConfigureClampsToTopology(t *testing.T) {
	s := New(zaptest.NewLogger(t), octaTopology())

	s.Configure(8, 8)
	big, little := s.ActiveCores()
	if big != 4 || little != 4 {
		t.Errorf("activation = (%d,%d), want clamped (4,4)", big, little)
	}

	s.Configure(-1, 2)
	big, little = s.ActiveCores()
	if big != 0 || little != 2 {
		t.Errorf("activation = (%d,%d), want (0,2)", big, little)
	}
}

func TestActiveCoreBitmap(t *testing.T) {
	s := New(zaptest.NewLogger(t), octaTopology())

	s.Configure(2, 2)
	if got := s.ActiveCoreBitmap(); got != 0b00110011 {
		t.Errorf("bitmap = %08b, want 00110011", got)
	}

	s.Configure(4, 4)
	if got := s.ActiveCoreBitmap(); got != 0xFF {
		t.Errorf("bitmap = %08b, want 11111111", got)
	}

	s.Configure(0, 0)
	if got := s.ActiveCoreBitmap(); got != 0 {
		t.Errorf("bitmap = %08b, want 0", got)
	}
}

func TestReduceIntensityDropsBigFirst(t *testing.T) {
	s := New(zaptest.NewLogger(t), octaTopology())
	s.Configure(2, 2)

	s.ReduceIntensity()
	big, little := s.ActiveCores()
	if big != 1 || little != 2 {
		t.Errorf("activation = (%d,%d), want (1,2)", big, little)
	}

	s.ReduceIntensity()
	big, little = s.ActiveCores()
	if big != 0 || little != 2 {
		t.Errorf("activation = (%d,%d), want (0,2)", big, little)
	}

	s.ReduceIntensity()
	big, little = s.ActiveCores()
	if big != 0 || little != 1 {
		t.Errorf("activation = (%d,%d), want (0,1)", big, little)
	}

	s.ReduceIntensity()
	big, little = s.ActiveCores()
	if big != 0 || little != 1 {
		t.Errorf("last core must stay active, got (%d,%d)", big, little)
	}
}

func TestIncreaseIntensityAddsLittleFirst(t *testing.T) {
	s := New(zaptest.NewLogger(t), octaTopology())
	s.Configure(0, 1)

	s.IncreaseIntensity()
	big, little := s.ActiveCores()
	if big != 0 || little != 2 {
		t.Errorf("activation = (%d,%d), want (0,2)", big, little)
	}

	for i := 0; i < 10; i++ {
		s.IncreaseIntensity()
	}
	big, little = s.ActiveCores()
	if big != 4 || little != 4 {
		t.Errorf("activation = (%d,%d), want saturated (4,4)", big, little)
	}
}

func TestRunExecutesWorkWithoutActiveCores(t *testing.T) {
	s := New(zaptest.NewLogger(t), octaTopology())
	s.Configure(0, 0)

	ran := false
	bound := s.RunOnBig(func() { ran = true })
	if !ran {
		t.Error("work must run even with no active cores")
	}
	if bound {
		t.Error("binding should report failure with empty core set")
	}
}

func TestRunExecutesWork(t *testing.T) {
	s := New(zaptest.NewLogger(t), octaTopology())
	s.Configure(2, 2)

	ranBig, ranLittle := false, false
	s.RunOnBig(func() { ranBig = true })
	s.RunOnLittle(func() { ranLittle = true })

	if !ranBig || !ranLittle {
		t.Error("work must run regardless of binding outcome")
	}

	big, little := s.ActiveCores()
	if big != 2 || little != 2 {
		t.Errorf("activation mask changed by dispatch: (%d,%d)", big, little)
	}
}
