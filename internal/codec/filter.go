package codec

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// kernelSize is the tap count of the bandwidth-limiting low-pass filter.
const kernelSize = 31

// lpfKernel builds a Hamming-windowed sinc low-pass kernel with the cutoff at
// bandwidth/sampleRate, normalized to unit DC gain.
func lpfKernel(bandwidthHz float64, sampleRate int) []float64 {
	cutoff := bandwidthHz / float64(sampleRate)
	center := kernelSize / 2

	k := make([]float64, kernelSize)
	for i := range k {
		k[i] = sinc(2 * cutoff * float64(i-center))
	}
	window.Hamming(k)

	var sum float64
	for _, v := range k {
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

// convolveSame convolves the signal with the kernel, zero-padded at the
// edges, producing output of the same length as the input.
func convolveSame(signal []float32, kernel []float64) []float32 {
	center := len(kernel) / 2
	out := make([]float32, len(signal))
	for i := range signal {
		var acc float64
		for j, k := range kernel {
			idx := i + j - center
			if idx < 0 || idx >= len(signal) {
				continue
			}
			acc += k * float64(signal[idx])
		}
		out[i] = float32(acc)
	}
	return out
}
