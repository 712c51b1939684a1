// Package chart maintains a single symbol's single-timeframe view: the
// aggregated candle series, its indicator columns, divergence history,
// and volume-analytics messages, recomputed from scratch on every
// controller update.
package chart

import (
	"fmt"
	"math"
	"time"

	"trading-systemv1/internal/analyzer/aggregate"
	"trading-systemv1/internal/analyzer/divergence"
	"trading-systemv1/internal/analyzer/volume"
	"trading-systemv1/internal/dataframe"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/taprim"
)

// DivIndicator selects which oscillator feeds divergence detection.
type DivIndicator int

const (
	DivRSI DivIndicator = iota
	DivStochastic
)

// Config is a single chart's static configuration, sourced from
// trade_config.chart_configs.
type Config struct {
	Timeframe       time.Duration
	Days            int
	EMA             int
	UseDivergence   bool
	DivIndicator    DivIndicator
	UseVWAP         bool
	UseExtendedHour bool
}

func (c Config) minWorkingSpan() time.Duration {
	if c.UseExtendedHour {
		return 8 * time.Hour
	}
	return 6 * time.Hour
}

// Chart is one symbol's view at one timeframe.
type Chart struct {
	cfg         Config
	candles     []model.Candle
	df          *dataframe.DataFrame
	divCol      string
	divergences []model.Divergence
	messages    []string
	atr         float64
	hasATR      bool

	predictor *volume.Predictor
}

// New creates an empty chart with the given configuration.
func New(cfg Config) *Chart {
	return &Chart{cfg: cfg}
}

// Timeframe returns the chart's configured bucket duration, used by the
// controller to pick the largest-timeframe chart for its reported ATR.
func (ch *Chart) Timeframe() time.Duration { return ch.cfg.Timeframe }

// Candles returns the chart's current aggregated candle series.
func (ch *Chart) Candles() []model.Candle { return ch.candles }

// ATR returns the chart's last ATR(14) value, or false if the series is
// too short to have one.
func (ch *Chart) ATR() (float64, bool) { return ch.atr, ch.hasATR }

// Update recomputes the chart from the controller's raw candle log and
// the externally supplied multi-timeframe trend.
func (ch *Chart) Update(rawCandles []model.Candle, trend model.Trend) {
	ch.candles = aggregate.Aggregate(rawCandles, ch.cfg.Timeframe)
	df := dataframe.FromCandles(ch.candles)

	close_ := df.Column("close")
	df.InsertColumn("ma", taprim.EMA(close_, ch.cfg.EMA))

	switch ch.cfg.DivIndicator {
	case DivStochastic:
		df.InsertColumn("stoch", taprim.Stochastic(df.Column("high"), df.Column("low"), close_, 14))
		ch.divCol = "stoch"
	default:
		df.InsertColumn("rsi", taprim.RSI(close_))
		ch.divCol = "rsi"
	}

	if ch.cfg.UseVWAP {
		df.InsertColumn("vwap", vwapColumn(df))
	}

	ch.df = df.TrimWorkingDays(ch.cfg.Days, ch.cfg.minWorkingSpan())

	ch.messages = ch.messages[:0]
	now := time.Now()
	if len(ch.candles) > 0 {
		last := ch.candles[len(ch.candles)-1]
		if now.Before(last.Time) {
			now = last.Time.Add(last.Duration)
		}
	}
	ch.messages = append(ch.messages,
		volume.PeriodRVOL(ch.candles, ch.cfg.Timeframe, now),
		volume.CurrentTimeOfDayRVOL(ch.candles, ch.cfg.Timeframe, now),
		volume.VolsUntilNow(ch.candles),
		ch.predictDailyVolume(now),
	)

	if ch.cfg.UseDivergence {
		div := divergence.Find(trend, ch.df, ch.divCol)
		ch.reconcileDivergence(div)
	}

	atrSeries := taprim.ATR(ch.df.Column("high"), ch.df.Column("low"), ch.df.Column("close"), 14)
	ch.atr, ch.hasATR = lastNonNaN(atrSeries)
}

// reconcileDivergence folds a freshly detected divergence (or its
// absence) into the running history per the chart's edge-stability
// policy: a new divergence that overlaps the tail of the history
// supersedes it; a missing divergence drops a stale trailing entry
// whose end was the previous update's last index.
func (ch *Chart) reconcileDivergence(div *model.Divergence) {
	if div != nil {
		for len(ch.divergences) > 0 && !div.Start.After(ch.divergences[len(ch.divergences)-1].End) {
			ch.divergences = ch.divergences[:len(ch.divergences)-1]
		}
		ch.divergences = append(ch.divergences, *div)
		return
	}
	if len(ch.divergences) == 0 {
		return
	}
	idx := ch.df.Index()
	if len(idx) == 0 {
		return
	}
	if ch.divergences[len(ch.divergences)-1].End.Equal(idx[len(idx)-1]) {
		ch.divergences = ch.divergences[:len(ch.divergences)-1]
	}
}

// Snapshot is the chart's JSON-emittable view.
type Snapshot struct {
	TimeframeSeconds int64              `json:"timeframe_seconds"`
	Prices           []dataframe.Row    `json:"prices"`
	RSIBracket       [2]int             `json:"rsiBracket"`
	Divergences      []model.Divergence `json:"divergences"`
	Messages         []string           `json:"messages"`
}

// JSON returns the chart's current snapshot.
func (ch *Chart) JSON() Snapshot {
	var prices []dataframe.Row
	if ch.df != nil {
		prices = ch.df.JSON()
	}
	return Snapshot{
		TimeframeSeconds: int64(ch.cfg.Timeframe.Seconds()),
		Prices:           prices,
		RSIBracket:       [2]int{30, 70},
		Divergences:      append([]model.Divergence(nil), ch.divergences...),
		Messages:         append([]string(nil), ch.messages...),
	}
}

// predictDailyVolume retrains the chart's volume predictor once per
// new trading day (or if none exists yet) and reports its expected
// total-volume figure alongside the average full-day volume of the
// prior days (DailyAvgVolume). Reports
// the predictor's absence rather than failing when there isn't yet
// enough history to train on.
func (ch *Chart) predictDailyVolume(now time.Time) string {
	days := volume.SplitByDate(ch.candles)
	if len(days) == 0 {
		return "Volume prediction: no predictor (insufficient data)"
	}
	today := days[len(days)-1]
	historical := days[:len(days)-1]

	crossedDay := len(ch.candles) >= 2 &&
		ch.candles[len(ch.candles)-1].Time.Format("2006-01-02") != ch.candles[len(ch.candles)-2].Time.Format("2006-01-02")
	if ch.predictor == nil || crossedDay {
		if len(ch.candles) >= 100 && len(historical) >= 2 {
			p := volume.NewPredictor()
			if err := p.Train(historical, 150); err == nil {
				ch.predictor = p
			}
		}
	}

	if ch.predictor == nil {
		return "Volume prediction: no predictor (insufficient data)"
	}

	expected, err := ch.predictor.Predict(historical, today, now)
	if err != nil {
		return fmt.Sprintf("Volume prediction: no predictor (%v)", err)
	}
	avg := volume.DailyAvgVolume(ch.candles)
	ratio := 0.0
	if avg > 0 {
		ratio = expected / avg
	}
	return fmt.Sprintf("Volume prediction: daily avg %.0f, predicted %.0f, ratio %.2f", avg, expected, ratio)
}

func vwapColumn(df *dataframe.DataFrame) []float64 {
	idx := df.Index()
	close_ := df.Column("close")
	vol := df.Column("volume")
	out := make([]float64, len(idx))

	var cumPV, cumVol float64
	var curDate string
	for i, t := range idx {
		date := t.Format("2006-01-02")
		if date != curDate {
			curDate = date
			cumPV, cumVol = 0, 0
		}
		cumPV += close_[i] * vol[i]
		cumVol += vol[i]
		if cumVol == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = cumPV / cumVol
		}
	}
	return out
}

func lastNonNaN(values []float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] == values[i] {
			return values[i], true
		}
	}
	return 0, false
}
