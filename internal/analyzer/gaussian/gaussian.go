// Package gaussian implements Gaussian smoothing of a 1D signal, used to
// suppress noise before extrema/pivot scans in divergence and
// support/resistance detection.
package gaussian

import "math"

// Smooth applies a Gaussian kernel to data. kernelSize, when non-nil,
// overrides the default of ceil(6*sigma) rounded up to the next odd
// number. Boundary points (within kernelSize/2 of either edge) are left
// untouched; interior points are replaced by the convolution.
func Smooth(data []float64, sigma float64, kernelSize *int) []float64 {
	if len(data) == 0 {
		return nil
	}

	ksize := 0
	if kernelSize != nil {
		ksize = *kernelSize
	} else {
		size := int(math.Ceil(6.0 * sigma))
		if size%2 == 0 {
			size++
		}
		ksize = size
	}

	kernel := gaussianKernel(sigma, ksize)
	half := ksize / 2

	result := make([]float64, len(data))
	copy(result, data)

	if len(data) <= 2*half {
		return result
	}

	for i := half; i < len(data)-half; i++ {
		sum := 0.0
		for j, k := range kernel {
			sum += data[i+j-half] * k
		}
		result[i] = sum
	}
	return result
}

func gaussianKernel(sigma float64, kernelSize int) []float64 {
	center := kernelSize / 2
	kernel := make([]float64, kernelSize)
	sum := 0.0
	for i := 0; i < kernelSize; i++ {
		x := float64(i - center)
		v := math.Exp(-0.5 * (x / sigma) * (x / sigma))
		kernel[i] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
