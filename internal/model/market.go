package model

import (
	"math"
	"sort"
	"time"
)

// OHLC represents a single candlestick bar. Time is the bar's start.
type OHLC struct {
	Time  time.Time `json:"timestamp" csv:"timestamp"`
	Open  float64   `json:"open" csv:"open"`
	High  float64   `json:"high" csv:"high"`
	Low   float64   `json:"low" csv:"low"`
	Close float64   `json:"close" csv:"close"`
}

// Finite reports whether all four prices are finite numbers.
func (b OHLC) Finite() bool {
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Consistent reports whether low <= min(open, close) <= max(open, close) <= high.
// Only provider data is expected to satisfy it.
func (b OHLC) Consistent() bool {
	lo := math.Min(b.Open, b.Close)
	hi := math.Max(b.Open, b.Close)
	return b.Low <= lo && hi <= b.High
}

// Series is an instrument's bars ordered oldest to newest with no duplicate timestamps.
type Series []OHLC

// Last returns the newest bar.
func (s Series) Last() (OHLC, bool) {
	if len(s) == 0 {
		return OHLC{}, false
	}
	return s[len(s)-1], true
}

// Closes extracts the close prices in order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Clone returns a copy that shares no backing array with s.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Normalize sorts bars oldest to newest and collapses duplicate timestamps,
// keeping the later record. Bars with a zero time or non-finite price are dropped.
func Normalize(bars []OHLC) Series {
	out := make(Series, 0, len(bars))
	for _, b := range bars {
		if b.Time.IsZero() || !b.Finite() {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i := range out {
		if n > 0 && out[i].Time.Equal(out[n-1].Time) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

// Reverse flips a newest-first batch in place and returns it.
func Reverse(bars []OHLC) []OHLC {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars
}
