package collector

import (
	"context"

	log "github.com/sirupsen/logrus"

	"MarketDashboard/internal/calculator"
	"MarketDashboard/internal/model"
)

// Leg is one currency pair feeding the synthetic dollar index.
type Leg struct {
	Pair     string
	Weight   float64
	Required bool
	Fetcher  Fetcher
}

// Synthetic derives a dollar index proxy from its legs' closes. It is the
// last resort in the dxy chain, so a missing required leg yields no data
// rather than an error.
type Synthetic struct {
	Legs []Leg
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Fetch(ctx context.Context) (model.Series, error) {
	inputs := make([]calculator.LegSeries, 0, len(s.Legs))
	for _, leg := range s.Legs {
		series, err := leg.Fetcher.Fetch(ctx)
		if err != nil || len(series) == 0 {
			if leg.Required {
				log.Warnf("synthetic dxy: required leg %s unavailable (err=%v), no proxy", leg.Pair, err)
				return nil, nil
			}
			log.Debugf("synthetic dxy: optional leg %s unavailable, skipping", leg.Pair)
			continue
		}
		inputs = append(inputs, calculator.LegSeries{
			Pair:     leg.Pair,
			Weight:   leg.Weight,
			Required: leg.Required,
			Series:   series,
		})
	}
	return calculator.DollarIndexProxy(inputs), nil
}

// DollarIndexLegs builds the standard six legs against one provider.
// symbols maps pair keys (see calculator.DXYWeights) to provider tickers;
// pairs missing from symbols are left out.
func DollarIndexLegs(p Provider, symbols map[string]string) []Leg {
	legs := make([]Leg, 0, len(calculator.DXYPairs))
	for _, pair := range calculator.DXYPairs {
		sym, ok := symbols[pair]
		if !ok {
			continue
		}
		legs = append(legs, Leg{
			Pair:     pair,
			Weight:   calculator.DXYWeights[pair],
			Required: calculator.DXYRequired[pair],
			Fetcher:  Source{Provider: p, Symbol: sym},
		})
	}
	return legs
}
