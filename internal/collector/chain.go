package collector

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"MarketDashboard/internal/model"
)

// Chain tries its fetchers in a fixed order and returns the first non-empty series.
type Chain struct {
	Label    string
	Fetchers []Fetcher
}

// NewChain creates a chain for the given instrument label.
func NewChain(label string, fetchers ...Fetcher) *Chain {
	return &Chain{Label: label, Fetchers: fetchers}
}

func (c *Chain) Name() string { return c.Label }

// Fetch implements Fetcher.
func (c *Chain) Fetch(ctx context.Context) (model.Series, error) {
	s, _, err := c.Resolve(ctx)
	return s, err
}

// Resolve is Fetch that also reports which fetcher produced the data.
func (c *Chain) Resolve(ctx context.Context) (model.Series, string, error) {
	var errs []error
	for _, f := range c.Fetchers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		s, err := f.Fetch(ctx)
		if err != nil {
			log.Warnf("%s: %s failed: %v", c.Label, f.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		if len(s) == 0 {
			log.Infof("%s: %s returned no data, trying next", c.Label, f.Name())
			continue
		}
		return s, f.Name(), nil
	}
	return nil, "", fmt.Errorf("%s: %w", c.Label, errors.Join(append([]error{ErrAllProvidersExhausted}, errs...)...))
}
