package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/accountsync-cli/internal/model"
	"github.com/sells-group/accountsync-cli/internal/source"
)

// Scheduler runs reconciliation passes on an interval. Passes never overlap:
// the loop is single-threaded and a manual trigger queued during a pass runs
// after it finishes.
type Scheduler struct {
	orch     *Orchestrator
	src      source.Source
	interval time.Duration
	trigger  chan struct{}
}

// NewScheduler creates a Scheduler running a pass every interval.
func NewScheduler(orch *Orchestrator, src source.Source, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		orch:     orch,
		src:      src,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate pass. Returns false if one is already queued.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run executes a pass immediately, then on every interval tick or manual
// trigger, until ctx is canceled. Pass errors are logged, not returned: a
// failed pass should not stop the watch loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) model.PassReport {
	report, err := s.orch.RunPass(ctx, s.src)
	if err != nil {
		zap.L().Error("sync: pass aborted", zap.Error(err))
	}
	zap.L().Info("sync: pass finished",
		zap.Int("total", report.Total),
		zap.Int("committed", report.Committed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report
}
