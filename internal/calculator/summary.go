package calculator

import (
	"errors"
	"time"

	"github.com/montanaflynn/stats"

	"MarketDashboard/internal/model"
)

// Summary describes a series' latest move and its range.
type Summary struct {
	Points        int       `json:"points"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	Last          float64   `json:"last"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Mean          float64   `json:"mean"`
	StdDev        float64   `json:"stddev"`
	Position      float64   `json:"position"` // last close within [low, high]
	SMA           *float64  `json:"sma,omitempty"`
	RSI           *float64  `json:"rsi,omitempty"`
}

// Indicator windows, in bars. With 5 minute bars SMA covers the last hour.
const (
	SMAPeriod = 12
	RSIPeriod = 14
)

// Summarize computes a Summary. Change is measured from the first bar's
// open to the last bar's close.
func Summarize(s model.Series) (Summary, error) {
	if len(s) == 0 {
		return Summary{}, errors.New("no bars provided")
	}
	first, last := s[0], s[len(s)-1]
	sum := Summary{
		Points: len(s),
		From:   first.Time,
		To:     last.Time,
		Last:   last.Close,
		Change: last.Close - first.Open,
	}
	if first.Open != 0 {
		sum.ChangePercent = sum.Change / first.Open * 100
	}

	highs := make([]float64, len(s))
	lows := make([]float64, len(s))
	for i, b := range s {
		highs[i] = b.High
		lows[i] = b.Low
	}
	var err error
	if sum.High, err = stats.Max(highs); err != nil {
		return Summary{}, err
	}
	if sum.Low, err = stats.Min(lows); err != nil {
		return Summary{}, err
	}
	closes := s.Closes()
	if sum.Mean, err = stats.Mean(closes); err != nil {
		return Summary{}, err
	}
	if sum.StdDev, err = stats.StandardDeviation(closes); err != nil {
		return Summary{}, err
	}
	sum.Position = Position(sum.Last, sum.High, sum.Low)
	if v, err := SMA(closes, SMAPeriod); err == nil {
		sum.SMA = &v
	}
	if v, err := RSI(closes, RSIPeriod); err == nil {
		sum.RSI = &v
	}
	return sum, nil
}

// Position returns where price sits within [low, high], from 0 to 1.
func Position(price, high, low float64) float64 {
	if high == low {
		return 0.5
	}
	p := (price - low) / (high - low)
	return min(max(p, 0), 1)
}
