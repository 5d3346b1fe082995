package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"MarketDashboard/internal/model"
)

// Provider names accepted in instrument sources.
const (
	ProviderTwelveData = "twelvedata"
	ProviderPolygon    = "polygon"
	ProviderYahoo      = "yahoo"
	ProviderMock       = "mock"
)

// Endpoint configures one upstream provider.
type Endpoint struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	PerMinute  int    `yaml:"per_minute"`
	MaxRetries int    `yaml:"max_retries"`
}

// Source is one step of an instrument's fallback chain: a provider and the
// tickers to try against it, in order.
type Source struct {
	Provider string   `yaml:"provider"`
	Symbols  []string `yaml:"symbols"`
}

// Synthetic configures the dollar index proxy. Symbols maps pair keys
// (eurusd, usdjpy, gbpusd, usdcad, usdsek, usdchf) to provider tickers.
type Synthetic struct {
	Provider string            `yaml:"provider"`
	Symbols  map[string]string `yaml:"symbols"`
}

// Instrument configures one dashboard series.
type Instrument struct {
	Key       string        `yaml:"key"`
	TTL       time.Duration `yaml:"ttl"`
	Resample  time.Duration `yaml:"resample"`
	Sources   []Source      `yaml:"sources"`
	Synthetic *Synthetic    `yaml:"synthetic"`
}

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	HTTP struct {
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
		BaseDelay  time.Duration `yaml:"base_delay"`
		UserAgent  string        `yaml:"user_agent"`
	} `yaml:"http"`
	Providers struct {
		TwelveData Endpoint `yaml:"twelvedata"`
		Polygon    Endpoint `yaml:"polygon"`
		Yahoo      Endpoint `yaml:"yahoo"`
	} `yaml:"providers"`
	// Offline serves every source from the mock provider.
	Offline     bool         `yaml:"offline"`
	Instruments []Instrument `yaml:"instruments"`
	Schedule    struct {
		WarmCron  string `yaml:"warm_cron"`
		PruneCron string `yaml:"prune_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string        `yaml:"sqlite_path"`
		Retention  time.Duration `yaml:"retention"`
	} `yaml:"database"`
	Telegram struct {
		BotToken      string        `yaml:"bot_token"`
		ChatID        string        `yaml:"chat_id"`
		AlertCooldown time.Duration `yaml:"alert_cooldown"`
		Commands      bool          `yaml:"commands"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults fill everything in.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("TWELVEDATA_API_KEY"); v != "" {
		c.Providers.TwelveData.APIKey = v
	}
	if v := os.Getenv("POLYGON_API_KEY"); v != "" {
		c.Providers.Polygon.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("WARM_CRON"); v != "" {
		c.Schedule.WarmCron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Offline = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	// Long enough for a full chain with backoff sleeps.
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 10 * time.Second
	}
	if c.HTTP.MaxRetries == 0 {
		c.HTTP.MaxRetries = 3
	}
	if c.HTTP.BaseDelay == 0 {
		c.HTTP.BaseDelay = time.Second
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "market-dashboard/1.0"
	}
	// Free tier budgets.
	if c.Providers.TwelveData.PerMinute == 0 {
		c.Providers.TwelveData.PerMinute = 8
	}
	if c.Providers.Polygon.PerMinute == 0 {
		c.Providers.Polygon.PerMinute = 5
	}
	if c.Providers.Yahoo.PerMinute == 0 {
		c.Providers.Yahoo.PerMinute = 30
	}
	if len(c.Instruments) == 0 {
		c.Instruments = DefaultInstruments()
	}
	if c.Schedule.WarmCron == "" {
		c.Schedule.WarmCron = "@every 45s"
	}
	if c.Schedule.PruneCron == "" {
		c.Schedule.PruneCron = "0 0 3 * * *"
	}
	if c.Database.Retention == 0 {
		c.Database.Retention = 7 * 24 * time.Hour
	}
	if c.Telegram.AlertCooldown == 0 {
		c.Telegram.AlertCooldown = 30 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// DefaultInstruments returns the VIX, DXY and EUR/USD chains.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{
			Key: model.VIX,
			TTL: 60 * time.Second,
			Sources: []Source{
				{Provider: ProviderTwelveData, Symbols: []string{"VIX"}},
				{Provider: ProviderYahoo, Symbols: []string{"^VIX"}},
			},
		},
		{
			Key: model.DXY,
			TTL: 60 * time.Second,
			Sources: []Source{
				{Provider: ProviderTwelveData, Symbols: []string{"DXY", "USDX", "DX"}},
				{Provider: ProviderYahoo, Symbols: []string{"DX-Y.NYB"}},
			},
			Synthetic: &Synthetic{
				Provider: ProviderTwelveData,
				Symbols: map[string]string{
					"eurusd": "EUR/USD",
					"usdjpy": "USD/JPY",
					"gbpusd": "GBP/USD",
					"usdcad": "USD/CAD",
					"usdsek": "USD/SEK",
					"usdchf": "USD/CHF",
				},
			},
		},
		{
			Key: model.EURUSD,
			TTL: 30 * time.Second,
			Sources: []Source{
				{Provider: ProviderTwelveData, Symbols: []string{"EUR/USD"}},
				{Provider: ProviderPolygon, Symbols: []string{"C:EURUSD"}},
				{Provider: ProviderYahoo, Symbols: []string{"EURUSD=X"}},
			},
		},
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("instruments: at least one is required"))
	}
	seen := make(map[string]bool, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.Key == "" {
			errs = append(errs, fmt.Errorf("instruments[%d].key is required", i))
			continue
		}
		if seen[inst.Key] {
			errs = append(errs, fmt.Errorf("instruments[%d]: duplicate key %q", i, inst.Key))
		}
		seen[inst.Key] = true
		if inst.TTL <= 0 {
			errs = append(errs, fmt.Errorf("instrument %s: ttl must be positive", inst.Key))
		}
		if inst.Resample < 0 {
			errs = append(errs, fmt.Errorf("instrument %s: resample must not be negative", inst.Key))
		}
		if len(inst.Sources) == 0 && inst.Synthetic == nil {
			errs = append(errs, fmt.Errorf("instrument %s: no sources configured", inst.Key))
		}
		for j, src := range inst.Sources {
			if err := c.checkProvider(src.Provider); err != nil {
				errs = append(errs, fmt.Errorf("instrument %s: sources[%d]: %w", inst.Key, j, err))
			}
			if len(src.Symbols) == 0 {
				errs = append(errs, fmt.Errorf("instrument %s: sources[%d]: symbols are required", inst.Key, j))
			}
		}
		if syn := inst.Synthetic; syn != nil {
			if err := c.checkProvider(syn.Provider); err != nil {
				errs = append(errs, fmt.Errorf("instrument %s: synthetic: %w", inst.Key, err))
			}
			for _, pair := range []string{"eurusd", "usdjpy"} {
				if syn.Symbols[pair] == "" {
					errs = append(errs, fmt.Errorf("instrument %s: synthetic.symbols.%s is required", inst.Key, pair))
				}
			}
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		errs = append(errs, errors.New("telegram.bot_token and telegram.chat_id must be set together"))
	}
	if c.HTTP.MaxRetries < 1 {
		errs = append(errs, errors.New("http.max_retries must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) checkProvider(name string) error {
	switch name {
	case ProviderMock, ProviderYahoo:
		return nil
	case ProviderTwelveData:
		if c.Providers.TwelveData.APIKey == "" && !c.Offline {
			return errors.New("twelvedata requires an API key (TWELVEDATA_API_KEY)")
		}
		return nil
	case ProviderPolygon:
		if c.Providers.Polygon.APIKey == "" && !c.Offline {
			return errors.New("polygon requires an API key (POLYGON_API_KEY)")
		}
		return nil
	default:
		return fmt.Errorf("unknown provider %q", name)
	}
}

// TelegramEnabled reports whether alerts can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
