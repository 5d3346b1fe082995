package calculator

import (
	"math"
	"sort"
	"time"

	"MarketDashboard/internal/model"
)

// DXYConstant is the scaling constant of the ICE dollar index formula.
const DXYConstant = 50.14348112

// Offsets used to fake a bar around a derived close.
const (
	syntheticOpen = 0.99
	syntheticHigh = 1.02
	syntheticLow  = 0.98
)

// DXYPairs lists the legs in formula order.
var DXYPairs = []string{"eurusd", "usdjpy", "gbpusd", "usdcad", "usdsek", "usdchf"}

// DXYWeights are the published exponents per pair.
var DXYWeights = map[string]float64{
	"eurusd": -0.576,
	"usdjpy": 0.136,
	"gbpusd": -0.119,
	"usdcad": 0.091,
	"usdsek": 0.042,
	"usdchf": 0.036,
}

// DXYRequired marks the legs without which no proxy is produced.
var DXYRequired = map[string]bool{"eurusd": true, "usdjpy": true}

// LegSeries is one pair's closes with its exponent.
type LegSeries struct {
	Pair     string
	Weight   float64
	Required bool
	Series   model.Series
}

// DollarIndexProxy approximates the dollar index at every timestamp where
// all required legs have a close. Optional legs contribute only where they
// have a bar at that timestamp.
//
// This is an approximation, not the published index: missing legs are
// dropped from the product instead of being reweighted, and open/high/low
// are fixed offsets from the derived close.
func DollarIndexProxy(legs []LegSeries) model.Series {
	if len(legs) == 0 {
		return nil
	}

	closes := make([]map[time.Time]float64, len(legs))
	var stamps []time.Time
	haveRequired := false
	for i, leg := range legs {
		m := make(map[time.Time]float64, len(leg.Series))
		for _, b := range leg.Series {
			if b.Close > 0 {
				m[b.Time] = b.Close
			}
		}
		closes[i] = m
		if leg.Required {
			haveRequired = true
		}
	}
	if !haveRequired {
		return nil
	}

	// Candidate timestamps come from the first required leg.
	for i, leg := range legs {
		if !leg.Required {
			continue
		}
		for ts := range closes[i] {
			stamps = append(stamps, ts)
		}
		break
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	out := make(model.Series, 0, len(stamps))
stamp:
	for _, ts := range stamps {
		v := DXYConstant
		for i, leg := range legs {
			c, ok := closes[i][ts]
			if !ok {
				if leg.Required {
					continue stamp
				}
				continue
			}
			v *= math.Pow(c, leg.Weight)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, SynthesizeBar(ts, v))
	}
	return out
}

// SynthesizeBar builds a bar from a single derived value.
func SynthesizeBar(ts time.Time, value float64) model.OHLC {
	return model.OHLC{
		Time:  ts,
		Open:  value * syntheticOpen,
		High:  value * syntheticHigh,
		Low:   value * syntheticLow,
		Close: value,
	}
}
