package gaussian

import (
	"math"
	"testing"
)

func TestKernelNormalizesToOne(t *testing.T) {
	k := gaussianKernel(1.0, 5)
	sum := 0.0
	for _, v := range k {
		sum += v
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Fatalf("expected kernel sum 1.0, got %v", sum)
	}
}

func TestSmoothPreservesLengthAndEndpoints(t *testing.T) {
	data := []float64{1, 2, 3, 100, 5, 6, 7, 8, 9}
	smoothed := Smooth(data, 1.0, intp(5))
	if len(smoothed) != len(data) {
		t.Fatalf("expected length %d, got %d", len(data), len(smoothed))
	}
	if smoothed[0] != data[0] || smoothed[len(smoothed)-1] != data[len(data)-1] {
		t.Fatalf("expected endpoints untouched, got first=%v last=%v", smoothed[0], smoothed[len(smoothed)-1])
	}
	// interior spike should be reduced
	if smoothed[3] >= data[3] {
		t.Fatalf("expected spike at index 3 to be smoothed down, got %v", smoothed[3])
	}
}

func TestSmoothEmptyInput(t *testing.T) {
	if Smooth(nil, 1.0, nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func intp(n int) *int { return &n }
