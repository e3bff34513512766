package npu

import (
	"errors"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"
)

// fakeBackend scripts platform behavior for fallback testing.
type fakeBackend struct {
	name   string
	fail   bool
	infers int
	closed bool
}

func (f *fakeBackend) Infer(input Tensor) (Tensor, error) {
	f.infers++
	if f.fail {
		return Tensor{}, errors.New("inference failed")
	}
	return Tensor{
		Data:  make([]float32, inputHeight*inputWidth),
		Shape: []int{1, inputHeight, inputWidth, 1},
	}, nil
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func filledInput(v float32) Tensor {
	t := NewInputTensor()
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

func TestCPUBackendIdentityKernel(t *testing.T) {
	b := newCPUBackend()
	out, err := b.Infer(filledInput(0.5))
	if err != nil {
		t.Fatalf("Infer error: %v", err)
	}
	if got := out.Len(); got != inputHeight*inputWidth {
		t.Fatalf("output length = %d, want %d", got, inputHeight*inputWidth)
	}

	for y := 0; y < inputHeight; y++ {
		for x := 0; x < inputWidth; x++ {
			v := out.Data[y*inputWidth+x]
			interior := y >= 1 && y <= 30 && x >= 1 && x <= 30
			if interior {
				if math.Abs(float64(v)-0.5) > 1e-6 {
					t.Fatalf("interior (%d,%d) = %f, want 0.5", y, x, v)
				}
			} else if v != 0 {
				t.Fatalf("border (%d,%d) = %f, want 0", y, x, v)
			}
		}
	}
}

func TestStateTensorRoundTrip(t *testing.T) {
	state := make([]byte, stateInputBytes)
	for i := range state {
		state[i] = byte(i % 256)
	}

	tensor := StateToTensor(state)
	back := TensorToState(tensor)

	for i := 0; i < stateOutputBytes && i < len(state); i++ {
		diff := int(back[i]) - int(state[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("byte %d round-tripped %d -> %d", i, state[i], back[i])
		}
	}
}

func TestStateToTensorShortInput(t *testing.T) {
	tensor := StateToTensor([]byte{255, 0})
	if tensor.Data[0] != 1.0 {
		t.Errorf("data[0] = %f, want 1.0", tensor.Data[0])
	}
	for i := 2; i < len(tensor.Data); i++ {
		if tensor.Data[i] != 0 {
			t.Fatalf("data[%d] = %f, want 0 padding", i, tensor.Data[i])
		}
	}
}

func TestTensorToStateClamps(t *testing.T) {
	tensor := Tensor{
		Data:  []float32{-0.5, 2.0, 0.5},
		Shape: []int{1, 1, 3, 1},
	}
	state := TensorToState(tensor)
	if state[0] != 0 {
		t.Errorf("negative value clamped to %d, want 0", state[0])
	}
	if state[1] != 255 {
		t.Errorf("overflow value clamped to %d, want 255", state[1])
	}
	if state[2] != 127 {
		t.Errorf("mid value = %d, want 127", state[2])
	}
	if len(state) != stateOutputBytes {
		t.Errorf("state length = %d, want %d", len(state), stateOutputBytes)
	}
}

func TestEngineCPUOnly(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t), nil)
	defer e.Close()

	if !e.UsingFallback() {
		t.Error("engine without platform backend should use fallback")
	}
	if got := e.PlatformName(); got != "CPU Reference" {
		t.Errorf("PlatformName() = %q, want CPU Reference", got)
	}

	out := e.Execute(filledInput(0.5))
	if out.Len() != inputHeight*inputWidth {
		t.Errorf("output length = %d, want %d", out.Len(), inputHeight*inputWidth)
	}

	m := e.Metrics()
	if m.TotalOps != 1 {
		t.Errorf("TotalOps = %d, want 1", m.TotalOps)
	}
	if m.UtilizationPct != 100.0 {
		t.Errorf("UtilizationPct = %f, want 100", m.UtilizationPct)
	}
	if m.PowerWatts != 1.0 {
		t.Errorf("PowerWatts = %f, want 1", m.PowerWatts)
	}
}

func TestEnginePlatformBackend(t *testing.T) {
	platform := &fakeBackend{name: "Test NPU"}
	e := NewEngine(zaptest.NewLogger(t), platform)
	defer e.Close()

	if e.UsingFallback() {
		t.Error("healthy platform backend should serve ops")
	}

	e.Execute(filledInput(0.5))
	e.Execute(filledInput(0.5))

	if platform.infers != 2 {
		t.Errorf("platform infers = %d, want 2", platform.infers)
	}

	m := e.Metrics()
	if m.PowerWatts != 2.0 {
		t.Errorf("PowerWatts = %f, want 2", m.PowerWatts)
	}
	if m.UtilizationPct != 2.0 {
		t.Errorf("UtilizationPct = %f, want 2", m.UtilizationPct)
	}
}

func TestEngineLatchesFallback(t *testing.T) {
	platform := &fakeBackend{name: "Flaky NPU", fail: true}
	e := NewEngine(zaptest.NewLogger(t), platform)
	defer e.Close()

	out := e.Execute(filledInput(0.5))
	if out.Len() != inputHeight*inputWidth {
		t.Error("failed platform inference must still yield a valid tensor")
	}
	if !e.UsingFallback() {
		t.Error("fallback should latch after platform failure")
	}

	platform.fail = false
	e.Execute(filledInput(0.5))
	if platform.infers != 1 {
		t.Errorf("platform infers = %d, want 1 (latched fallback)", platform.infers)
	}
	if got := e.PlatformName(); got != "CPU Reference" {
		t.Errorf("PlatformName() = %q, want CPU Reference after latch", got)
	}
}

func TestEngineCloseClosesPlatform(t *testing.T) {
	platform := &fakeBackend{name: "Test NPU"}
	e := NewEngine(zaptest.NewLogger(t), platform)
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !platform.closed {
		t.Error("platform backend should be closed")
	}
}

func TestProcessStateShape(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t), nil)
	defer e.Close()

	state := make([]byte, 4096)
	for i := range state {
		state[i] = byte(i)
	}
	out := e.ProcessState(state)
	if len(out) != stateOutputBytes {
		t.Errorf("ProcessState length = %d, want %d", len(out), stateOutputBytes)
	}
}
