package collector

import (
	"context"
	"strings"
	"time"

	"MarketDashboard/internal/model"
)

// MockProvider returns synthetic bars for offline development and testing.
type MockProvider struct {
	// Prices maps a symbol to the close the generated series ends at.
	// Unknown symbols get 100.
	Prices   map[string]float64
	Count    int
	Interval time.Duration
	// Data, when set for a symbol, is returned instead of generated bars.
	Data map[string]model.Series
	Now  func() time.Time
}

// NewMockProvider creates a mock with plausible prices for the dashboard tickers.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Prices: map[string]float64{
			"VIX":      18.5,
			"^VIX":     18.5,
			"DXY":      104.2,
			"DX-Y.NYB": 104.2,
			"EUR/USD":  1.085,
			"EURUSD=X": 1.085,
			"C:EURUSD": 1.085,
			"USD/JPY":  151.3,
			"GBP/USD":  1.27,
			"USD/CAD":  1.36,
			"USD/SEK":  10.45,
			"USD/CHF":  0.88,
		},
		Count:    36,
		Interval: 5 * time.Minute,
		Now:      time.Now,
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchBars(_ context.Context, symbol string) (model.Series, error) {
	if s, ok := m.Data[symbol]; ok {
		return s.Clone(), nil
	}
	price, ok := m.Prices[strings.ToUpper(symbol)]
	if !ok {
		price = 100
	}
	end := m.Now().UTC().Truncate(m.Interval)
	return generateMockBars(price, m.Count, end, m.Interval), nil
}

func generateMockBars(basePrice float64, count int, end time.Time, step time.Duration) model.Series {
	bars := make(model.Series, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count+1)*0.0005)
		bars[i] = model.OHLC{
			Time:  end.Add(-time.Duration(count-1-i) * step),
			Open:  p * 0.999,
			High:  p * 1.002,
			Low:   p * 0.997,
			Close: p,
		}
	}
	return bars
}
