package model

import "time"

// Quote is a level-one market data tick: last traded price, last traded
// size, and the trade's exchange-reported time (when known).
type Quote struct {
	LastPrice float64
	LastSize  uint64
	TradeTime *time.Time
}
