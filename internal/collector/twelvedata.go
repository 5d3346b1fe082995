package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"MarketDashboard/internal/httpx"
	"MarketDashboard/internal/model"
)

const twelveDataBaseURL = "https://api.twelvedata.com"

// Layouts Twelve Data uses for "datetime", intraday first.
var twelveDataLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// TwelveData implements Provider using the Twelve Data time_series endpoint.
type TwelveData struct {
	Endpoint
	Interval   string // e.g. "5min"
	OutputSize int
	Client     *httpx.Client
}

// NewTwelveData creates a Twelve Data provider.
func NewTwelveData(ep Endpoint, client *httpx.Client) *TwelveData {
	if ep.BaseURL == "" {
		ep.BaseURL = twelveDataBaseURL
	}
	return &TwelveData{Endpoint: ep, Interval: "5min", OutputSize: 36, Client: client}
}

func (p *TwelveData) Name() string { return "twelvedata" }

type twelveDataValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
}

// twelveDataResponse is the success envelope. Errors arrive with HTTP 200
// and status "error"; classifyTwelveData handles those.
type twelveDataResponse struct {
	Status string            `json:"status"`
	Values []twelveDataValue `json:"values"`
}

func (p *TwelveData) FetchBars(ctx context.Context, symbol string) (model.Series, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", p.Interval)
	q.Set("outputsize", strconv.Itoa(p.OutputSize))
	q.Set("timezone", "UTC")
	q.Set("apikey", p.APIKey)

	var resp twelveDataResponse
	err := p.Client.FetchJSON(ctx, httpx.Call{
		Provider:   p.Name(),
		URL:        p.BaseURL + "/time_series?" + q.Encode(),
		PerMinute:  p.PerMinute,
		MaxRetries: p.MaxRetries,
		Classify: func(body []byte) error {
			return classifyTwelveData(symbol, body)
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	bars := make([]model.OHLC, 0, len(resp.Values))
	skipped := 0
	for _, v := range resp.Values {
		bar, ok := parseTwelveDataValue(v)
		if !ok {
			skipped++
			continue
		}
		bars = append(bars, bar)
	}
	if skipped > 0 {
		log.Debugf("twelvedata %s: skipped %d malformed points", symbol, skipped)
	}
	// Values arrive newest first.
	return model.Normalize(model.Reverse(bars)), nil
}

// classifyTwelveData maps an in-band error envelope onto the httpx taxonomy.
// Credit exhaustion arrives as code 429 and is retried like an HTTP 429.
func classifyTwelveData(symbol string, body []byte) error {
	var env struct {
		Status  string `json:"status"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &env) != nil || !strings.EqualFold(env.Status, "error") {
		return nil
	}
	kind := httpx.ErrNonRetryable
	switch {
	case env.Code == http.StatusTooManyRequests:
		kind = httpx.ErrRateLimited
	case env.Code >= 500:
		kind = httpx.ErrTransient
	}
	return fmt.Errorf("twelvedata %s: code %d: %s: %w", symbol, env.Code, env.Message, kind)
}

func parseTwelveDataValue(v twelveDataValue) (model.OHLC, bool) {
	var ts time.Time
	var err error
	for _, layout := range twelveDataLayouts {
		ts, err = time.ParseInLocation(layout, v.Datetime, time.UTC)
		if err == nil {
			break
		}
	}
	if err != nil {
		return model.OHLC{}, false
	}

	var prices [4]float64
	for i, s := range [...]string{v.Open, v.High, v.Low, v.Close} {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f <= 0 {
			return model.OHLC{}, false
		}
		prices[i] = f
	}
	bar := model.OHLC{Time: ts, Open: prices[0], High: prices[1], Low: prices[2], Close: prices[3]}
	if !bar.Finite() || !bar.Consistent() {
		return model.OHLC{}, false
	}
	return bar, true
}
