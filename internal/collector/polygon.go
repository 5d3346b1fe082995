package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/polygon-io/client-go/rest/models"

	"MarketDashboard/internal/httpx"
	"MarketDashboard/internal/model"
)

const polygonBaseURL = "https://api.polygon.io"

// Polygon implements Provider using the aggregates (bars) endpoint. Forex
// tickers take the "C:" prefix, e.g. "C:EURUSD".
type Polygon struct {
	Endpoint
	Multiplier int
	Timespan   models.Timespan
	Lookback   time.Duration
	Limit      int
	Client     *httpx.Client
	// Now returns the end of the requested window; tests replace it.
	Now func() time.Time
}

// NewPolygon creates a Polygon provider requesting 5 minute bars.
func NewPolygon(ep Endpoint, client *httpx.Client) *Polygon {
	if ep.BaseURL == "" {
		ep.BaseURL = polygonBaseURL
	}
	return &Polygon{
		Endpoint:   ep,
		Multiplier: 5,
		Timespan:   models.Minute,
		Lookback:   24 * time.Hour,
		Limit:      36,
		Client:     client,
		Now:        time.Now,
	}
}

func (p *Polygon) Name() string { return "polygon" }

func (p *Polygon) FetchBars(ctx context.Context, symbol string) (model.Series, error) {
	to := p.Now().UTC()
	from := to.Add(-p.Lookback)

	q := url.Values{}
	q.Set("adjusted", "true")
	q.Set("sort", "desc")
	q.Set("limit", strconv.Itoa(p.Limit))
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%d/%d?%s",
		p.BaseURL, url.PathEscape(symbol), p.Multiplier, p.Timespan,
		from.UnixMilli(), to.UnixMilli(), q.Encode())

	var resp models.GetAggsResponse
	err := p.Client.FetchJSON(ctx, httpx.Call{
		Provider:   p.Name(),
		URL:        u,
		Header:     http.Header{"Authorization": []string{"Bearer " + p.APIKey}},
		PerMinute:  p.PerMinute,
		MaxRetries: p.MaxRetries,
	}, &resp)
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(resp.Status) {
	case "ERROR", "NOT_AUTHORIZED":
		return nil, fmt.Errorf("polygon %s: status %s: %s: %w", symbol, resp.Status, resp.ErrorMessage, httpx.ErrNonRetryable)
	}

	bars := make([]model.OHLC, 0, len(resp.Results))
	for _, a := range resp.Results {
		bar := model.OHLC{
			Time:  time.Time(a.Timestamp).UTC(),
			Open:  a.Open,
			High:  a.High,
			Low:   a.Low,
			Close: a.Close,
		}
		if bar.Close <= 0 || !bar.Consistent() {
			continue
		}
		bars = append(bars, bar)
	}
	return model.Normalize(bars), nil
}
