package model

// PriceRejection describes a detected rebound off a support/resistance
// level: the candle the move arrived from, the candle where the pivot
// was rejected, and whether volume suggests the move is imminent to
// continue.
type PriceRejection struct {
	Trend        Trend  `json:"trend"`
	PriceLevel   float64 `json:"price_level"`
	ArrivingFrom Candle  `json:"arriving_from"`
	RejectedAt   Candle  `json:"rejected_at"`
	Now          Candle  `json:"now"`
	IsImminent   bool    `json:"is_imminent"`
}
