package collector

import (
	"context"
	"errors"

	"MarketDashboard/internal/model"
)

// ErrAllProvidersExhausted is returned when every strategy in a chain came back empty.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

// Fetcher produces one instrument's series. An empty series with a nil
// error means "no data"; callers move on to the next strategy either way.
type Fetcher interface {
	Fetch(ctx context.Context) (model.Series, error)
	Name() string
}

// Provider is an upstream market data API that returns bars for a ticker.
type Provider interface {
	FetchBars(ctx context.Context, symbol string) (model.Series, error)
	Name() string
}

// Source binds a Provider to one ticker symbol.
type Source struct {
	Provider Provider
	Symbol   string
}

func (s Source) Name() string { return s.Provider.Name() + ":" + s.Symbol }

func (s Source) Fetch(ctx context.Context) (model.Series, error) {
	return s.Provider.FetchBars(ctx, s.Symbol)
}

// Sources binds provider to each symbol in order, so alternate tickers
// are tried against the same provider before moving on.
func Sources(p Provider, symbols ...string) []Fetcher {
	out := make([]Fetcher, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, Source{Provider: p, Symbol: sym})
	}
	return out
}
