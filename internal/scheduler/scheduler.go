package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crucial707/logsink/internal/metrics"
)

// LogCounter reports how many log records are stored.
type LogCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StatsRefresher keeps the logsink_logs_stored gauge in step with the database.
type StatsRefresher struct {
	Counter LogCounter
	Timeout time.Duration
}

// Refresh runs one count and publishes it. Errors are logged and the gauge keeps its last value.
func (s *StatsRefresher) Refresh(ctx context.Context) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := s.Counter.Count(ctx)
	if err != nil {
		slog.Warn("scheduler: count logs", "error", err)
		return
	}
	metrics.SetLogsStored(n)
}

// Start refreshes once, then on every tick of spec (standard cron or "@every 1m").
// The returned cron is already running; callers Stop it on shutdown.
func Start(ctx context.Context, spec string, s *StatsRefresher) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Refresh(ctx) }); err != nil {
		return nil, fmt.Errorf("scheduler: invalid cron spec %q: %w", spec, err)
	}

	s.Refresh(ctx)
	c.Start()
	slog.Info("scheduler: stats refresh started", "spec", spec)
	return c, nil
}
