// Package market serves instrument series from the cache, refreshing them
// through each instrument's provider chain.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"MarketDashboard/internal/cache"
	"MarketDashboard/internal/calculator"
	"MarketDashboard/internal/collector"
	"MarketDashboard/internal/model"
	"MarketDashboard/internal/notifier"
	"MarketDashboard/internal/recorder"
)

// ErrUnknownInstrument is returned for keys that are not configured.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Instrument is a configured series and the chain that refreshes it.
type Instrument struct {
	Key      string
	TTL      time.Duration
	Resample time.Duration
	Chain    *collector.Chain
}

// Status describes an instrument's cache entry.
type Status struct {
	Instrument  string      `json:"instrument"`
	State       cache.State `json:"state"`
	RefreshedAt *time.Time  `json:"refreshed_at,omitempty"`
	TTL         string      `json:"ttl"`
	Points      int         `json:"points"`
	Last        *model.OHLC `json:"last,omitempty"`
}

// Service owns the cache and the instrument chains. It has no package-level state.
type Service struct {
	cache       *cache.Cache
	instruments map[string]Instrument
	order       []string
	recorder    recorder.Recorder
	notifier    notifier.Notifier

	// AlertCooldown is the minimum gap between alerts for one instrument.
	AlertCooldown time.Duration
	// AlertRetries is how many times a failed alert is resent.
	AlertRetries int

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

// NewService creates a Service. rec and n may be nil.
func NewService(c *cache.Cache, rec recorder.Recorder, n notifier.Notifier, instruments ...Instrument) *Service {
	if c == nil {
		c = cache.New()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	s := &Service{
		cache:         c,
		instruments:   make(map[string]Instrument, len(instruments)),
		recorder:      rec,
		notifier:      n,
		AlertCooldown: 30 * time.Minute,
		AlertRetries:  2,
		lastAlert:     make(map[string]time.Time),
	}
	for _, inst := range instruments {
		if _, dup := s.instruments[inst.Key]; !dup {
			s.order = append(s.order, inst.Key)
		}
		s.instruments[inst.Key] = inst
	}
	return s
}

// Keys returns the configured instrument keys in configuration order.
func (s *Service) Keys() []string {
	return append([]string(nil), s.order...)
}

// Series returns key's series, refreshing it when the cached copy is older
// than its TTL. Upstream failures never surface: the caller gets the last
// good series or an empty one. The only error is ErrUnknownInstrument.
func (s *Service) Series(ctx context.Context, key string) (model.Series, error) {
	inst, ok := s.instruments[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, key)
	}

	var (
		refreshed bool
		source    string
		start     time.Time
	)
	series, err := s.cache.GetOrRefresh(ctx, key, inst.TTL, func(ctx context.Context) (model.Series, error) {
		refreshed = true
		start = time.Now()
		bars, src, err := inst.Chain.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		source = src
		return calculator.Resample(bars, inst.Resample), nil
	})
	if refreshed {
		s.report(ctx, key, source, series, err, time.Since(start))
	}
	return series, nil
}

// Refresh runs key's chain without consulting the cache and stores the
// result when it is non-empty. It returns the fetcher that served the data.
func (s *Service) Refresh(ctx context.Context, key string) (model.Series, string, error) {
	inst, ok := s.instruments[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownInstrument, key)
	}
	bars, source, err := inst.Chain.Resolve(ctx)
	if err != nil {
		return nil, "", err
	}
	bars = calculator.Resample(bars, inst.Resample)
	s.cache.Store(key, inst.TTL, bars)
	return bars.Clone(), source, nil
}

// Snapshot returns every instrument's series, fetching them in parallel.
func (s *Service) Snapshot(ctx context.Context) (map[string]model.Series, error) {
	var mu sync.Mutex
	out := make(map[string]model.Series, len(s.order))

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range s.order {
		g.Go(func() error {
			series, err := s.Series(gctx, key)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = series
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Warm brings every stale or empty instrument up to date.
func (s *Service) Warm(ctx context.Context) {
	start := time.Now()
	if _, err := s.Snapshot(ctx); err != nil {
		log.Errorf("cache warm: %v", err)
		return
	}
	log.Debugf("cache warm finished in %v", time.Since(start))
}

// Summaries returns a summary for every instrument that has data.
func (s *Service) Summaries(ctx context.Context) (map[string]calculator.Summary, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]calculator.Summary, len(snap))
	for key, series := range snap {
		sum, err := calculator.Summarize(series)
		if err != nil {
			continue
		}
		out[key] = sum
	}
	return out, nil
}

// Status reports every instrument's cache state without refreshing.
func (s *Service) Status() []Status {
	out := make([]Status, 0, len(s.order))
	for _, key := range s.order {
		e, state := s.cache.Peek(key)
		st := Status{
			Instrument: key,
			State:      state,
			TTL:        s.instruments[key].TTL.String(),
			Points:     len(e.Series),
		}
		if state != cache.Empty {
			at := e.RefreshedAt.UTC()
			st.RefreshedAt = &at
		}
		if last, ok := e.Series.Last(); ok {
			st.Last = &last
		}
		out = append(out, st)
	}
	return out
}

// Recent returns the latest refresh events, newest first.
func (s *Service) Recent(instrument string, limit int) ([]recorder.RefreshEvent, error) {
	return s.recorder.Recent(instrument, limit)
}

// Prune drops refresh history older than retention.
func (s *Service) Prune(retention time.Duration) (int64, error) {
	return s.recorder.Prune(time.Now().Add(-retention))
}

func (s *Service) report(ctx context.Context, key, source string, series model.Series, err error, took time.Duration) {
	evt := &recorder.RefreshEvent{
		At:         time.Now(),
		Instrument: key,
		Source:     source,
		Points:     len(series),
		Duration:   took,
	}
	switch {
	case err == nil && source != "":
		evt.Outcome = recorder.OutcomeRefreshed
		log.WithFields(log.Fields{"instrument": key, "source": source, "points": len(series), "took": took}).Info("refreshed")
	case len(series) > 0:
		evt.Outcome = recorder.OutcomeStale
	default:
		evt.Outcome = recorder.OutcomeEmpty
	}
	if err != nil {
		evt.Error = err.Error()
	}
	if evt.Outcome != recorder.OutcomeRefreshed {
		log.WithFields(log.Fields{"instrument": key, "outcome": evt.Outcome}).Errorf("refresh failed: %v", err)
	}
	if rerr := s.recorder.RecordRefresh(evt); rerr != nil {
		log.Errorf("record refresh: %v", rerr)
	}

	if errors.Is(err, collector.ErrAllProvidersExhausted) && ctx.Err() == nil {
		s.alert(ctx, key, evt)
	}
}

func (s *Service) alert(ctx context.Context, key string, evt *recorder.RefreshEvent) {
	now := time.Now()
	s.mu.Lock()
	if last, ok := s.lastAlert[key]; ok && now.Sub(last) < s.AlertCooldown {
		s.mu.Unlock()
		return
	}
	s.lastAlert[key] = now
	s.mu.Unlock()

	e, _ := s.cache.Peek(key)
	msg := notifier.FormatDegradedAlert(key, evt.Outcome, evt.Error, e.RefreshedAt)
	if err := notifier.Deliver(ctx, s.notifier, msg, s.AlertRetries); err != nil {
		log.Errorf("send %s alert: %v", key, err)
	}
}

// StatusLines converts Status rows for the Telegram formatter.
func StatusLines(rows []Status) []notifier.StatusLine {
	lines := make([]notifier.StatusLine, 0, len(rows))
	for _, r := range rows {
		l := notifier.StatusLine{Instrument: r.Instrument, State: r.State.String(), Points: r.Points}
		if r.RefreshedAt != nil {
			l.RefreshedAt = *r.RefreshedAt
		}
		if r.Last != nil {
			l.Last = r.Last.Close
		}
		lines = append(lines, l)
	}
	return lines
}
