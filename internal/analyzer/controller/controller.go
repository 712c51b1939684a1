// Package controller owns one symbol's candle log, its per-timeframe
// Charts, its tick accumulator, and its support/resistance state, and
// publishes JSON snapshots of all of it.
package controller

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"trading-systemv1/internal/analyzer/aggregate"
	"trading-systemv1/internal/analyzer/chart"
	"trading-systemv1/internal/analyzer/supportresistance"
	"trading-systemv1/internal/analyzer/trend"
	"trading-systemv1/internal/dataframe"
	"trading-systemv1/internal/model"
)

// TradingHours is a wall-clock window, offsets from local midnight,
// used to split a trading day into "regular" and "extended" sessions.
type TradingHours struct {
	Open, Close time.Duration
}

func (h TradingHours) contains(t time.Time) bool {
	offset := t.Sub(midnight(t))
	return offset >= h.Open && offset < h.Close
}

// containsInclusive is like contains but treats the close boundary as
// part of the window too — used to gate rejection detection, which
// original_source runs through the close of the trading day rather
// than stopping just short of it.
func (h TradingHours) containsInclusive(t time.Time) bool {
	offset := t.Sub(midnight(t))
	return offset >= h.Open && offset <= h.Close
}

func (h TradingHours) startOn(t time.Time) time.Time {
	return midnight(t).Add(h.Open)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Config is a controller's static, per-symbol configuration.
type Config struct {
	ChartConfigs    []chart.Config
	TradingHours    TradingHours
	UseExtendedHour bool
	UseTickData     bool
	SR              supportresistance.Config
}

func (c Config) minWorkingSpan() time.Duration {
	if c.UseExtendedHour {
		return 8 * time.Hour
	}
	return 6 * time.Hour
}

// Publisher is the controller's fan-out collaborator: whatever emits a
// snapshot onward to subscribed clients (WebSocket hub, persistence,
// metrics).
type Publisher interface {
	PublishChart(symbol string, snapshot Snapshot)
}

// Logger is the minimal structured-logging surface the controller uses
// to report assertion-quality bugs and dropped events without crashing.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// RejectionPoint is one vertex of a rejection's plottable path: where
// the move arrived from, where it was rejected, and where price stands
// now.
type RejectionPoint struct {
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

// RejectionMessage tracks the controller's current support/resistance
// rejection: Ended is set true at the start of every detection pass and
// only cleared when a rejection is positively found that pass — the
// source of truth for "no active rejection this tick". Trend and
// Points persist across passes that don't find a rejection and are
// only cleared on a day rollover, mirroring original_source's
// find_support_resistance.
type RejectionMessage struct {
	Rejection  *model.PriceRejection `json:"-"`
	Trend      model.Trend           `json:"trend"`
	IsImminent bool                  `json:"is_imminent"`
	FoundAt    time.Time             `json:"found_at"`
	Ended      bool                  `json:"ended"`
	Points     []RejectionPoint      `json:"points"`
}

// Controller is the per-symbol analysis state machine.
type Controller struct {
	Symbol     string
	Instrument model.Instrument

	cfg Config

	candles   []model.Candle
	charts    []*chart.Chart
	publisher Publisher
	logger    Logger

	tickCandle       *model.Candle
	tickPublished    time.Time
	tickPublishDelay time.Duration

	priceLevels           []model.PriceLevel
	priceLevelsOverridden bool
	rejection             RejectionMessage

	favorite bool
}

// New constructs a controller for symbol with one Chart per configured
// timeframe, and an initial randomized 5-15s tick-publish delay.
func New(symbol string, instrument model.Instrument, cfg Config, publisher Publisher, logger Logger) *Controller {
	charts := make([]*chart.Chart, len(cfg.ChartConfigs))
	for i, cc := range cfg.ChartConfigs {
		charts[i] = chart.New(cc)
	}
	return &Controller{
		Symbol:           symbol,
		Instrument:       instrument,
		cfg:              cfg,
		charts:           charts,
		publisher:        publisher,
		logger:           logger,
		tickPublished:    time.Now(),
		tickPublishDelay: randomTickDelay(),
		rejection:        RejectionMessage{Ended: true, Points: []RejectionPoint{}},
	}
}

// Prime seeds the candle log at construction time, from historical
// fetch, without triggering a publish.
func (c *Controller) Prime(candles []model.Candle) {
	c.candles = append(c.candles[:0], candles...)
	c.updateCharts(false)
}

// OnNewCandle appends candle to the log and recomputes everything that
// derives from it. candle.Time must be strictly greater than the last
// appended candle's time; a violation is an assertion-quality bug and
// is logged and dropped rather than panicking or corrupting the log.
func (c *Controller) OnNewCandle(candle model.Candle, publish bool) {
	if n := len(c.candles); n > 0 && !candle.Time.After(c.candles[n-1].Time) {
		if c.logger != nil {
			c.logger.Error("out-of-order candle dropped", "symbol", c.Symbol, "time", candle.Time)
		}
		return
	}
	c.candles = append(c.candles, candle)
	c.tickCandle = nil
	c.tickPublished = time.Now()
	c.updateCharts(publish)
}

// OnTick folds a level-one quote into the in-flight synthetic tick
// candle and, once the randomized publish delay has elapsed, appends
// that candle to the log for one update pass and pops it again — the
// log remains authoritative; the tick is only ever a view.
func (c *Controller) OnTick(q model.Quote) {
	if q.TradeTime == nil {
		return
	}
	now := time.Now()
	if c.tickCandle == nil {
		c.tickCandle = &model.Candle{
			Open: q.LastPrice, Low: q.LastPrice, High: q.LastPrice, Close: q.LastPrice,
			Volume: q.LastSize, Time: *q.TradeTime, Duration: now.Sub(*q.TradeTime),
		}
	} else {
		tc := c.tickCandle
		if q.LastPrice < tc.Low {
			tc.Low = q.LastPrice
		}
		if q.LastPrice > tc.High {
			tc.High = q.LastPrice
		}
		tc.Close = q.LastPrice
		tc.Volume += q.LastSize
		tc.Duration = now.Sub(tc.Time)
	}

	if now.Sub(c.tickPublished) < c.tickPublishDelay {
		return
	}

	c.candles = append(c.candles, *c.tickCandle)
	c.updateCharts(true)
	c.candles = c.candles[:len(c.candles)-1]
	c.tickPublished = now
	c.tickPublishDelay = randomTickDelay()
}

// SetFavorite records the client-visible favorite flag for this symbol.
func (c *Controller) SetFavorite(fav bool) { c.favorite = fav }

// OverridePriceLevels installs a client-supplied level set and stops
// automatic rediscovery until cleared.
func (c *Controller) OverridePriceLevels(levels []model.PriceLevel) {
	c.priceLevels = levels
	c.priceLevelsOverridden = true
}

// ClearPriceLevelOverride resumes automatic rediscovery.
func (c *Controller) ClearPriceLevelOverride() {
	c.priceLevelsOverridden = false
}

func (c *Controller) updateCharts(publish bool) {
	tr := trend.Check(c.candles)
	for _, ch := range c.charts {
		ch.Update(c.candles, tr)
	}

	if !c.priceLevelsOverridden && (len(c.priceLevels) == 0 || c.shouldRediscoverLevels()) {
		c.priceLevels = c.findSupportResistance()
	}

	c.checkRejection(tr)

	if publish {
		c.Publish()
	}
}

// shouldRediscoverLevels reports whether the last candle's close time
// falls in the 30-minute window immediately preceding regular trading
// start.
func (c *Controller) shouldRediscoverLevels() bool {
	if len(c.candles) == 0 {
		return false
	}
	end := c.candles[len(c.candles)-1].End()
	regularStart := c.cfg.TradingHours.startOn(end)
	windowStart := regularStart.Add(-30 * time.Minute)
	return !end.Before(windowStart) && end.Before(regularStart)
}

// findSupportResistance implements the §4.2.1 price-level discovery
// algorithm: 30-minute aggregation, trim to 1/5/20 working-day
// frames, split the 1-day frame into regular/extended sessions,
// collect min-low/max-high from each frame, then dedup by a
// pairwise-ignore pass that keeps the first-seen level whenever a
// later one falls within threshold(price) of it.
func (c *Controller) findSupportResistance() []model.PriceLevel {
	buckets := aggregate.Aggregate(c.candles, 30*time.Minute)
	df := dataframe.FromCandles(buckets)
	minSpan := c.cfg.minWorkingSpan()

	oneDay := df.TrimWorkingDays(1, minSpan)
	fiveDay := df.TrimWorkingDays(5, minSpan)
	twentyDay := df.TrimWorkingDays(20, minSpan)

	regular := oneDay.Filtered(func(_ int, t time.Time) bool { return c.cfg.TradingHours.contains(t) })
	extended := oneDay.Filtered(func(_ int, t time.Time) bool { return !c.cfg.TradingHours.contains(t) })

	var levels []model.PriceLevel
	levels = append(levels, minMaxLevels(regular)...)
	levels = append(levels, minMaxLevels(extended)...)
	levels = append(levels, minMaxLevels(fiveDay)...)
	levels = append(levels, minMaxLevels(twentyDay)...)

	return dedupLevels(levels, c.cfg.SR.Threshold)
}

func minMaxLevels(df *dataframe.DataFrame) []model.PriceLevel {
	idx := df.Index()
	if len(idx) == 0 {
		return nil
	}
	lows, highs := df.Column("low"), df.Column("high")
	minI, maxI := 0, 0
	for i := 1; i < len(idx); i++ {
		if lows[i] < lows[minI] {
			minI = i
		}
		if highs[i] > highs[maxI] {
			maxI = i
		}
	}
	return []model.PriceLevel{
		model.NewPriceLevel(lows[minI], idx[minI]),
		model.NewPriceLevel(highs[maxI], idx[maxI]),
	}
}

func dedupLevels(levels []model.PriceLevel, threshold func(float64) float64) []model.PriceLevel {
	kept := make([]model.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		duplicate := false
		for _, k := range kept {
			if math.Abs(lvl.Price-k.Price) < threshold(k.Price) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, lvl)
		}
	}
	return kept
}

// checkRejection runs the support/resistance engine against the single
// price level nearest the last close in the direction of trend, on the
// 5-minute aggregated series, using the largest-timeframe chart's ATR
// as the move-confirmation gate. Mirrors original_source's
// find_support_resistance: every pass resets every level's IsActive,
// marks the chosen level active regardless of whether a rejection is
// ultimately found against it, and a day rollover clears the carried
// Trend/Points even when nothing new is found this pass.
func (c *Controller) checkRejection(tr model.Trend) {
	for i := range c.priceLevels {
		c.priceLevels[i].IsActive = false
	}

	prevRejection := c.rejection.Rejection
	carriedTrend := c.rejection.Trend
	carriedPoints := c.rejection.Points
	foundAt := c.rejection.FoundAt

	c.rejection = RejectionMessage{Trend: carriedTrend, FoundAt: foundAt, Points: carriedPoints, Ended: true}

	if len(c.candles) == 0 {
		return
	}
	last := c.candles[len(c.candles)-1]
	if !sameDate(last.Time, foundAt) {
		c.rejection.Trend = model.TrendNone
		c.rejection.Points = []RejectionPoint{}
	}

	curTime := last.End()
	if !c.cfg.TradingHours.containsInclusive(curTime) {
		return
	}
	if tr != model.TrendBullish && tr != model.TrendBearish {
		return
	}
	if len(c.priceLevels) == 0 {
		return
	}

	fiveMin := aggregate.Aggregate(c.candles, 5*time.Minute)
	if len(fiveMin) == 0 {
		return
	}
	lastAgg := fiveMin[len(fiveMin)-1]

	idx := nearestLevel(c.priceLevels, lastAgg.Close, tr)
	if idx < 0 {
		return
	}
	c.priceLevels[idx].IsActive = true

	largest := c.largestChart()
	if largest == nil {
		return
	}
	atr, ok := largest.ATR()
	if !ok {
		return
	}

	var rej *model.PriceRejection
	if tr == model.TrendBullish {
		rej = c.cfg.SR.CheckSupport(fiveMin, c.priceLevels[idx].Price, atr)
	} else {
		rej = c.cfg.SR.CheckResistance(fiveMin, c.priceLevels[idx].Price, atr)
	}
	if rej == nil {
		return
	}

	newFoundAt := curTime
	if prevRejection != nil && rej.RejectedAt.Time.Equal(prevRejection.RejectedAt.Time) {
		newFoundAt = foundAt
	}

	c.rejection = RejectionMessage{
		Rejection:  rej,
		Trend:      rej.Trend,
		IsImminent: rej.IsImminent,
		FoundAt:    newFoundAt,
		Ended:      false,
		Points:     rejectionPoints(rej, newFoundAt),
	}
}

// nearestLevel returns the index of the priceLevels entry nearest
// lastClose among those on the side trend implies support/resistance
// should be watched from: at-or-below lastClose for a bullish trend
// (support), at-or-above it for bearish (resistance). Returns -1 if no
// level qualifies.
func nearestLevel(levels []model.PriceLevel, lastClose float64, tr model.Trend) int {
	best := -1
	bestDist := math.Inf(1)
	for i, lvl := range levels {
		if tr == model.TrendBullish {
			if lvl.Price > lastClose {
				continue
			}
		} else if lvl.Price < lastClose {
			continue
		}
		d := math.Abs(lastClose - lvl.Price)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// rejectionPoints builds the three-vertex plot path for a detected
// rejection: where the move arrived from, where it was rejected, and
// where price stands at foundAt. A bullish rejection (off support)
// reads the high of the arriving candle and the low of the rejecting
// one; a bearish rejection (off resistance) reads the reverse. The
// "now" point's price is deliberately the raw current candle's close.
func rejectionPoints(rej *model.PriceRejection, foundAt time.Time) []RejectionPoint {
	bullish := rej.Trend == model.TrendBullish
	arrivingPrice := rej.ArrivingFrom.Low
	rejectedPrice := rej.RejectedAt.High
	if bullish {
		arrivingPrice = rej.ArrivingFrom.High
		rejectedPrice = rej.RejectedAt.Low
	}
	return []RejectionPoint{
		{Time: rej.ArrivingFrom.Time.Unix(), Price: arrivingPrice},
		{Time: rej.RejectedAt.Time.Unix(), Price: rejectedPrice},
		{Time: foundAt.Unix(), Price: rej.Now.Close},
	}
}

func (c *Controller) largestChart() *chart.Chart {
	var best *chart.Chart
	for _, ch := range c.charts {
		if best == nil || ch.Timeframe() > best.Timeframe() {
			best = ch
		}
	}
	return best
}

// Snapshot is the controller's JSON-emittable view, sent to clients as
// UPDATE_CHART.
type Snapshot struct {
	Symbol                string             `json:"symbol"`
	LastUpdated           int64              `json:"lastUpdated"`
	Charts                []chart.Snapshot   `json:"charts"`
	ATR                   float64            `json:"atr"`
	PriceLevels           []model.PriceLevel `json:"priceLevels"`
	PriceLevelsOverridden bool               `json:"priceLevelsOverridden"`
	Rejection             RejectionMessage   `json:"rejection"`
}

// Snap builds the controller's current snapshot without emitting
// it anywhere.
func (c *Controller) Snap() Snapshot {
	charts := make([]chart.Snapshot, len(c.charts))
	for i, ch := range c.charts {
		charts[i] = ch.JSON()
	}

	var lastUpdated int64
	if n := len(c.candles); n > 0 {
		lastUpdated = c.candles[n-1].End().Unix()
	}

	var atr float64
	if largest := c.largestChart(); largest != nil {
		atr, _ = largest.ATR()
	}

	return Snapshot{
		Symbol:                c.Symbol,
		LastUpdated:           lastUpdated,
		Charts:                charts,
		ATR:                   atr,
		PriceLevels:           append([]model.PriceLevel(nil), c.priceLevels...),
		PriceLevelsOverridden: c.priceLevelsOverridden,
		Rejection:             c.rejection,
	}
}

// Publish emits the controller's current snapshot via its Publisher.
// Idempotent: it has no side effect beyond the emit itself.
func (c *Controller) Publish() {
	if c.publisher == nil {
		return
	}
	c.publisher.PublishChart(c.Symbol, c.Snap())
}

func randomTickDelay() time.Duration {
	return 5*time.Second + time.Duration(rand.Int63n(int64(10*time.Second)))
}

func (c *Controller) String() string {
	return fmt.Sprintf("Controller{%s, %d candles, %d charts}", c.Symbol, len(c.candles), len(c.charts))
}
