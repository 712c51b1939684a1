package taprim

import (
	"math"
	"testing"
)

func TestEMAPadsFrontWithNaNAndMatchesLength(t *testing.T) {
	close := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	ema := EMA(close, 3)
	if len(ema) != len(close) {
		t.Fatalf("expected length %d, got %d", len(close), len(ema))
	}
	if !math.IsNaN(ema[0]) || !math.IsNaN(ema[1]) {
		t.Fatalf("expected NaN warm-up gap, got %v", ema[:2])
	}
	if math.IsNaN(ema[len(ema)-1]) {
		t.Fatal("expected last value to be computed")
	}
}

func TestRSIBoundedZeroToHundred(t *testing.T) {
	close := make([]float64, 30)
	for i := range close {
		close[i] = 100 + float64(i)
	}
	rsi := RSI(close)
	last := rsi[len(rsi)-1]
	if last < 0 || last > 100 {
		t.Fatalf("rsi out of bounds: %v", last)
	}
	// Strictly increasing prices should approach 100.
	if last < 90 {
		t.Fatalf("expected rsi near 100 for monotonic uptrend, got %v", last)
	}
}

func TestATRNonNegative(t *testing.T) {
	high := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}
	low := []float64{9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}
	close := []float64{9.5, 10.5, 11.5, 12.5, 13.5, 14.5, 15.5, 16.5, 17.5, 18.5, 19.5, 20.5, 21.5, 22.5, 23.5}
	atr := ATR(high, low, close, 14)
	last := atr[len(atr)-1]
	if math.IsNaN(last) || last < 0 {
		t.Fatalf("expected non-negative atr, got %v", last)
	}
}
