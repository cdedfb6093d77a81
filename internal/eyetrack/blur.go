package eyetrack

import "math"

// Smoothing kernel applied before thresholding. The sigma matches what a
// 9-tap kernel implies at the usual 0.3*((k-1)*0.5-1)+0.8 derivation.
const (
	gaussianKernelSize = 9
	gaussianSigma      = 1.7
)

var gaussianKernel = makeGaussianKernel(gaussianKernelSize, gaussianSigma)

func makeGaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	mid := size / 2
	var sum float64
	for i := range k {
		d := float64(i - mid)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// reflect101 mirrors an out-of-range index without repeating the edge sample.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// gaussianBlur smooths src with the fixed kernel, one separable pass per
// axis, and returns a new frame. src is not modified.
func gaussianBlur(src *Frame) *Frame {
	mid := len(gaussianKernel) / 2
	tmp := make([]float64, len(src.Pix))
	for y := 0; y < src.H; y++ {
		row := y * src.W
		for x := 0; x < src.W; x++ {
			var acc float64
			for k, kv := range gaussianKernel {
				acc += kv * float64(src.Pix[row+reflect101(x+k-mid, src.W)])
			}
			tmp[row+x] = acc
		}
	}
	out := &Frame{Pix: make([]uint8, len(src.Pix)), W: src.W, H: src.H}
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			var acc float64
			for k, kv := range gaussianKernel {
				acc += kv * tmp[reflect101(y+k-mid, src.H)*src.W+x]
			}
			v := math.Round(acc)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.Pix[y*src.W+x] = uint8(v)
		}
	}
	return out
}
