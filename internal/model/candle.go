package model

import (
	"encoding/json"
	"time"
)

// Candle represents an OHLCV summary of trading activity over Duration,
// starting at Time. Prices are float64; Volume is cumulative traded
// quantity over the interval.
type Candle struct {
	Open     float64       `json:"open"`
	Low      float64       `json:"low"`
	High     float64       `json:"high"`
	Close    float64       `json:"close"`
	Volume   uint64        `json:"volume"`
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration"`
}

// IsGreen reports whether the candle closed at or above its open.
func (c Candle) IsGreen() bool {
	return c.Close >= c.Open
}

// IsRed reports whether the candle closed below its open.
func (c Candle) IsRed() bool {
	return c.Close < c.Open
}

// End returns the instant the candle's interval ends.
func (c Candle) End() time.Time {
	return c.Time.Add(c.Duration)
}

// JSON returns the JSON encoding of the candle, ignoring marshal errors
// (used only on hot paths where the shape is known to be encodable).
func (c Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
