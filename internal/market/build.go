package market

import (
	"fmt"
	"strings"

	"MarketDashboard/internal/cache"
	"MarketDashboard/internal/collector"
	"MarketDashboard/internal/config"
	"MarketDashboard/internal/httpx"
	"MarketDashboard/internal/notifier"
	"MarketDashboard/internal/ratelimit"
	"MarketDashboard/internal/recorder"
)

// Providers maps provider names to their adapters.
type Providers map[string]collector.Provider

// NewHTTPClient creates the shared upstream client and its rate limiter.
func NewHTTPClient(cfg *config.Config) *httpx.Client {
	c := httpx.New(ratelimit.New(), cfg.HTTP.Timeout, cfg.Proxy)
	c.MaxRetries = cfg.HTTP.MaxRetries
	c.BaseDelay = cfg.HTTP.BaseDelay
	c.UserAgent = cfg.HTTP.UserAgent
	return c
}

// NewProviders builds every provider adapter. In offline mode every name
// resolves to the same mock.
func NewProviders(cfg *config.Config, client *httpx.Client) Providers {
	mock := collector.NewMockProvider()
	if cfg.Offline {
		return Providers{
			config.ProviderTwelveData: mock,
			config.ProviderPolygon:    mock,
			config.ProviderYahoo:      mock,
			config.ProviderMock:       mock,
		}
	}
	return Providers{
		config.ProviderTwelveData: collector.NewTwelveData(endpoint(cfg.Providers.TwelveData), client),
		config.ProviderPolygon:    collector.NewPolygon(endpoint(cfg.Providers.Polygon), client),
		config.ProviderYahoo:      collector.NewYahoo(endpoint(cfg.Providers.Yahoo), client),
		config.ProviderMock:       mock,
	}
}

func endpoint(e config.Endpoint) collector.Endpoint {
	return collector.Endpoint{
		BaseURL:    strings.TrimRight(e.BaseURL, "/"),
		APIKey:     e.APIKey,
		PerMinute:  e.PerMinute,
		MaxRetries: e.MaxRetries,
	}
}

// BuildInstruments turns the configured instruments into fallback chains:
// each source's symbols in order, then the synthetic proxy if configured.
func BuildInstruments(cfg *config.Config, providers Providers) ([]Instrument, error) {
	out := make([]Instrument, 0, len(cfg.Instruments))
	for _, ic := range cfg.Instruments {
		var fetchers []collector.Fetcher
		for _, src := range ic.Sources {
			p, ok := providers[src.Provider]
			if !ok {
				return nil, fmt.Errorf("instrument %s: unknown provider %q", ic.Key, src.Provider)
			}
			fetchers = append(fetchers, collector.Sources(p, src.Symbols...)...)
		}
		if syn := ic.Synthetic; syn != nil {
			p, ok := providers[syn.Provider]
			if !ok {
				return nil, fmt.Errorf("instrument %s: unknown synthetic provider %q", ic.Key, syn.Provider)
			}
			fetchers = append(fetchers, &collector.Synthetic{Legs: collector.DollarIndexLegs(p, syn.Symbols)})
		}
		out = append(out, Instrument{
			Key:      ic.Key,
			TTL:      ic.TTL,
			Resample: ic.Resample,
			Chain:    collector.NewChain(ic.Key, fetchers...),
		})
	}
	return out, nil
}

// Options carries the optional collaborators of New.
type Options struct {
	Cache    *cache.Cache
	Recorder recorder.Recorder
	Notifier notifier.Notifier
}

// New wires a Service from configuration.
func New(cfg *config.Config, client *httpx.Client, opts Options) (*Service, error) {
	instruments, err := BuildInstruments(cfg, NewProviders(cfg, client))
	if err != nil {
		return nil, err
	}
	svc := NewService(opts.Cache, opts.Recorder, opts.Notifier, instruments...)
	if cfg.Telegram.AlertCooldown > 0 {
		svc.AlertCooldown = cfg.Telegram.AlertCooldown
	}
	return svc, nil
}
