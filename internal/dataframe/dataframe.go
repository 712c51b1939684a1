// Package dataframe provides a small column-oriented, time-indexed
// numeric table used by the analysis engine to carry aggregated candle
// series plus derived indicator columns.
package dataframe

import (
	"fmt"
	"math"
	"sort"
	"time"

	"trading-systemv1/internal/model"
)

// DataFrame is an ordered sequence of time indices paired with named
// float64 columns of the same length. Column insertion order is
// preserved; NaN is a first-class value meaning "indicator warm-up gap".
type DataFrame struct {
	index    []time.Time
	colNames []string
	columns  map[string][]float64
}

// New creates an empty DataFrame declared with the given column names.
func New(colNames []string) *DataFrame {
	cols := make(map[string][]float64, len(colNames))
	names := make([]string, len(colNames))
	copy(names, colNames)
	for _, n := range names {
		cols[n] = nil
	}
	return &DataFrame{colNames: names, columns: cols}
}

// FromCandles builds a DataFrame with columns open, low, high, close,
// volume indexed by each candle's Time.
func FromCandles(candles []model.Candle) *DataFrame {
	n := len(candles)
	index := make([]time.Time, n)
	open := make([]float64, n)
	low := make([]float64, n)
	high := make([]float64, n)
	close_ := make([]float64, n)
	volume := make([]float64, n)
	for i, c := range candles {
		index[i] = c.Time
		open[i] = c.Open
		low[i] = c.Low
		high[i] = c.High
		close_[i] = c.Close
		volume[i] = float64(c.Volume)
	}
	df := &DataFrame{index: index, columns: map[string][]float64{}}
	df.InsertColumn("open", open)
	df.InsertColumn("low", low)
	df.InsertColumn("high", high)
	df.InsertColumn("close", close_)
	df.InsertColumn("volume", volume)
	return df
}

// Shape returns (number of rows, number of columns).
func (df *DataFrame) Shape() (int, int) {
	return len(df.index), len(df.colNames)
}

// InsertColumn appends a named column. Panics if its length does not
// match the index length — a caller-side programming error, not a
// runtime data condition.
func (df *DataFrame) InsertColumn(name string, data []float64) {
	if len(data) != len(df.index) {
		panic(fmt.Sprintf("dataframe: column %q length %d != index length %d", name, len(data), len(df.index)))
	}
	if _, exists := df.columns[name]; !exists {
		df.colNames = append(df.colNames, name)
	}
	df.columns[name] = data
}

// Index returns the time index.
func (df *DataFrame) Index() []time.Time {
	return df.index
}

// ColumnNames returns "index" followed by declared column names in
// insertion order.
func (df *DataFrame) ColumnNames() []string {
	names := make([]string, 0, len(df.colNames)+1)
	names = append(names, "index")
	names = append(names, df.colNames...)
	return names
}

// Column returns the named column. Panics if the column does not exist
// (a programming error — columns are a known, fixed set per chart).
func (df *DataFrame) Column(name string) []float64 {
	col, ok := df.columns[name]
	if !ok {
		panic(fmt.Sprintf("dataframe: column %q not found, available: %v", name, df.colNames))
	}
	return col
}

// HasColumn reports whether the named column exists.
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.columns[name]
	return ok
}

// TrimWorkingDays drops the rows dated before the oldest of the most
// recent `days` working days, where a working day is a date whose
// (first, last) index span is >= minSpan. Every row on or after that
// date is kept, including dates after it whose span is below minSpan
// (such as a partial current session), so the result can hold more than
// `days` dates. If the frame already has <= days working days, it is
// returned unchanged (a shallow, independent copy).
func (df *DataFrame) TrimWorkingDays(days int, minSpan time.Duration) *DataFrame {
	type span struct {
		min, max time.Time
	}
	spans := map[string]*span{}
	order := []string{}
	for _, idx := range df.index {
		key := idx.Format("2006-01-02")
		s, ok := spans[key]
		if !ok {
			s = &span{min: idx, max: idx}
			spans[key] = s
			order = append(order, key)
		} else {
			if idx.Before(s.min) {
				s.min = idx
			}
			if idx.After(s.max) {
				s.max = idx
			}
		}
	}
	workDays := make([]string, 0, len(order))
	for _, key := range order {
		s := spans[key]
		if s.max.Sub(s.min) >= minSpan {
			workDays = append(workDays, key)
		}
	}
	sort.Strings(workDays)

	if len(workDays) <= days {
		return df.clone()
	}

	keep := workDays[len(workDays)-days:]
	minDay := keep[0]

	out := New(df.colNames)
	for i, idx := range df.index {
		if idx.Format("2006-01-02") >= minDay {
			out.index = append(out.index, idx)
			for _, col := range df.colNames {
				out.columns[col] = append(out.columns[col], df.columns[col][i])
			}
		}
	}
	return out
}

// Filtered returns a new DataFrame containing only rows whose index
// satisfies pred.
func (df *DataFrame) Filtered(pred func(i int, idx time.Time) bool) *DataFrame {
	out := New(df.colNames)
	for i, idx := range df.index {
		if pred(i, idx) {
			out.index = append(out.index, idx)
			for _, col := range df.colNames {
				out.columns[col] = append(out.columns[col], df.columns[col][i])
			}
		}
	}
	return out
}

func (df *DataFrame) clone() *DataFrame {
	out := New(df.colNames)
	out.index = append([]time.Time(nil), df.index...)
	for _, col := range df.colNames {
		out.columns[col] = append([]float64(nil), df.columns[col]...)
	}
	return out
}

// Row is a single JSON-emittable row: epoch-second time plus each
// column's value (nil for NaN).
type Row map[string]any

// JSON returns a row-oriented representation of the frame suitable for
// marshaling: each row has "time" plus one key per column, with NaN
// mapped to nil (JSON null).
func (df *DataFrame) JSON() []Row {
	rows := make([]Row, len(df.index))
	for i, idx := range df.index {
		row := make(Row, len(df.colNames)+1)
		row["time"] = idx.Unix()
		for _, col := range df.colNames {
			v := df.columns[col][i]
			if math.IsNaN(v) {
				row[col] = nil
			} else {
				row[col] = v
			}
		}
		rows[i] = row
	}
	return rows
}
