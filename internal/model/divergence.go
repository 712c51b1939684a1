package model

import "time"

// Divergence records a single instance of an indicator's slope
// disagreeing with price's slope between two extrema.
type Divergence struct {
	Trend         Trend     `json:"trend"`
	Start         time.Time `json:"start"`
	StartPrice    float64   `json:"start_price"`
	StartIndicator float64  `json:"start_indicator"`
	End           time.Time `json:"end"`
	EndPrice      float64   `json:"end_price"`
	EndIndicator  float64   `json:"end_indicator"`
}
