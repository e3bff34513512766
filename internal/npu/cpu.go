package npu

// cpuBackend is the reference implementation: a 3x3 convolution with a
// fixed identity-center kernel averaged across input channels. The
// weights are fixed by the protocol, not learnable. Border pixels stay
// zero.
type cpuBackend struct{}

func newCPUBackend() *cpuBackend { return &cpuBackend{} }

func (b *cpuBackend) Name() string { return "CPU Reference" }

func (b *cpuBackend) Close() error { return nil }

func (b *cpuBackend) Infer(input Tensor) (Tensor, error) {
	out := Tensor{
		Data:  make([]float32, inputHeight*inputWidth),
		Shape: []int{1, inputHeight, inputWidth, 1},
	}

	kernel := [3][3]float32{
		{0, 0, 0},
		{0, 1, 0},
		{0, 0, 0},
	}

	for y := 1; y < inputHeight-1; y++ {
		for x := 1; x < inputWidth-1; x++ {
			var sum float32
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					srcY, srcX := y+ky, x+kx

					var channelSum float32
					for c := 0; c < inputChannels; c++ {
						idx := (srcY*inputWidth+srcX)*inputChannels + c
						if idx < len(input.Data) {
							channelSum += input.Data[idx]
						}
					}
					channelSum /= inputChannels

					sum += channelSum * kernel[ky+1][kx+1]
				}
			}
			out.Data[y*inputWidth+x] = sum
		}
	}
	return out, nil
}
