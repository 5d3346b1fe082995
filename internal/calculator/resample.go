package calculator

import (
	"time"

	"MarketDashboard/internal/model"
)

// Resample aggregates bars into buckets of the given width, aligned to the
// epoch: first open, max high, min low, last close. Empty buckets are not
// emitted. A non-positive interval returns the input unchanged.
func Resample(s model.Series, interval time.Duration) model.Series {
	if interval <= 0 || len(s) == 0 {
		return s
	}

	out := make(model.Series, 0, len(s))
	var cur model.OHLC
	open := false
	for _, b := range s {
		bucket := b.Time.Truncate(interval)
		if open && bucket.Equal(cur.Time) {
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			continue
		}
		if open {
			out = append(out, cur)
		}
		cur = model.OHLC{Time: bucket, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
		open = true
	}
	if open {
		out = append(out, cur)
	}
	return out
}
