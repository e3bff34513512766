package npu

// Tensor is a dense float32 value object. The neural pipeline uses a
// single fixed input shape [1,32,32,3] and output shape [1,32,32,1].
type Tensor struct {
	Data  []float32
	Shape []int
}

const (
	inputHeight   = 32
	inputWidth    = 32
	inputChannels = 3

	stateInputBytes  = inputHeight * inputWidth * inputChannels
	stateOutputBytes = 2048
)

// NewInputTensor allocates a zeroed tensor of the pipeline input shape.
func NewInputTensor() Tensor {
	return Tensor{
		Data:  make([]float32, stateInputBytes),
		Shape: []int{1, inputHeight, inputWidth, inputChannels},
	}
}

// Len returns the element count implied by the shape.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// StateToTensor maps the first 3072 bytes of an arbitrary state into
// the input tensor, scaling each byte to [0,1]. Shorter states leave
// the tail of the tensor zeroed.
func StateToTensor(state []byte) Tensor {
	t := NewInputTensor()
	for i := 0; i < len(t.Data) && i < len(state); i++ {
		t.Data[i] = float32(state[i]) / 255.0
	}
	return t
}

// TensorToState maps tensor values back into a 2048-byte state,
// clamping each scaled value to a byte. Positions beyond the tensor's
// length stay zero.
func TensorToState(t Tensor) []byte {
	state := make([]byte, stateOutputBytes)
	for i := 0; i < len(t.Data) && i < len(state); i++ {
		v := t.Data[i] * 255.0
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		state[i] = byte(v)
	}
	return state
}
