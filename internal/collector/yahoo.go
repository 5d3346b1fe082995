package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"MarketDashboard/internal/httpx"
	"MarketDashboard/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo implements Provider using the Yahoo Finance chart API. It needs no key.
type Yahoo struct {
	Endpoint
	Interval string // e.g. "5m"
	Range    string // e.g. "1d"
	Client   *httpx.Client
}

// NewYahoo creates a Yahoo provider sharing client's limiter.
func NewYahoo(ep Endpoint, client *httpx.Client) *Yahoo {
	if ep.BaseURL == "" {
		ep.BaseURL = yahooBaseURL
	}
	return &Yahoo{Endpoint: ep, Interval: "5m", Range: "1d", Client: client}
}

func (y *Yahoo) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []any `json:"open"`
					High  []any `json:"high"`
					Low   []any `json:"low"`
					Close []any `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat reads a JSON number; nulls (and anything else) come back as 0.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func at(vals []any, i int) float64 {
	if i >= len(vals) {
		return 0
	}
	return toFloat(vals[i])
}

func (y *Yahoo) FetchBars(ctx context.Context, symbol string) (model.Series, error) {
	q := url.Values{}
	q.Set("interval", y.Interval)
	q.Set("range", y.Range)
	q.Set("includePrePost", "false")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.BaseURL, url.PathEscape(symbol), q.Encode())

	var chart yahooChart
	err := y.Client.FetchJSON(ctx, httpx.Call{
		Provider:   y.Name(),
		URL:        u,
		Header:     http.Header{"User-Agent": []string{"Mozilla/5.0"}},
		PerMinute:  y.PerMinute,
		MaxRetries: y.MaxRetries,
	}, &chart)
	if err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo %s: %s: %w", symbol, chart.Chart.Error.Description, httpx.ErrNonRetryable)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]model.OHLC, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar := model.OHLC{
			Time:  time.Unix(ts, 0).UTC(),
			Open:  at(quote.Open, i),
			High:  at(quote.High, i),
			Low:   at(quote.Low, i),
			Close: at(quote.Close, i),
		}
		if bar.Open == 0 || bar.High == 0 || bar.Low == 0 || bar.Close == 0 {
			continue // skip null bars (halts, pre-open slots)
		}
		if !bar.Consistent() {
			continue
		}
		bars = append(bars, bar)
	}
	return model.Normalize(bars), nil
}
