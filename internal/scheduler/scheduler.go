package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"MarketDashboard/internal/calculator"
	"MarketDashboard/internal/market"
	"MarketDashboard/internal/notifier"
)

// Scheduler manages the background cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Market    *market.Service
	Retention time.Duration
	Ctx       context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, svc *market.Service, retention time.Duration) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Market:    svc,
		Retention: retention,
		Ctx:       ctx,
	}
}

// RegisterAll registers the cache warm-up and history prune tasks.
// An empty spec disables that task.
func (s *Scheduler) RegisterAll(warmCron, pruneCron string) error {
	if warmCron != "" {
		if _, err := s.Cron.AddFunc(warmCron, s.warmTask); err != nil {
			return fmt.Errorf("register warm task: %w", err)
		}
	}
	if pruneCron != "" {
		if _, err := s.Cron.AddFunc(pruneCron, s.pruneTask); err != nil {
			return fmt.Errorf("register prune task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info("scheduler stopped")
}

// RunWarmNow fills the cache immediately (used on start).
func (s *Scheduler) RunWarmNow() {
	s.warmTask()
}

func (s *Scheduler) warmTask() {
	log.Debug("running cache warm task")
	s.Market.Warm(s.Ctx)
}

func (s *Scheduler) pruneTask() {
	n, err := s.Market.Prune(s.Retention)
	if err != nil {
		log.Errorf("prune refresh history: %v", err)
		return
	}
	log.Infof("pruned %d refresh events older than %v", n, s.Retention)
}

// HandleCommand processes a Telegram command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	var verb string
	if fields := strings.Fields(command); len(fields) > 0 {
		verb = strings.ToLower(fields[0])
	}
	switch verb {
	case "/status":
		return notifier.FormatStatus(market.StatusLines(s.Market.Status()), time.Now())
	case "/summary":
		sums, err := s.Market.Summaries(ctx)
		if err != nil {
			return fmt.Sprintf("❌ summary failed: %v", err)
		}
		return formatSummaries(s.Market.Keys(), sums)
	case "/refresh":
		s.Market.Warm(ctx)
		return notifier.FormatStatus(market.StatusLines(s.Market.Status()), time.Now())
	default:
		return "Available commands:\n• /status\n• /summary\n• /refresh"
	}
}

func formatSummaries(keys []string, sums map[string]calculator.Summary) string {
	var b strings.Builder
	b.WriteString("📈 <b>Market summary</b>\n\n")
	for _, k := range keys {
		sum, ok := sums[k]
		if !ok {
			fmt.Fprintf(&b, "%s: no data\n", strings.ToUpper(k))
			continue
		}
		fmt.Fprintf(&b, "%s: %.4f (%+.4f, %+.2f%%) range %.4f-%.4f\n",
			strings.ToUpper(k), sum.Last, sum.Change, sum.ChangePercent, sum.Low, sum.High)
	}
	return b.String()
}
