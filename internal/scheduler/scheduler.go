// Package scheduler keeps the snapshot cache warm so interactive requests
// mostly hit the fresh path.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"agripulse-api/internal/services"
)

// Scheduler runs the periodic warm-refresh task.
type Scheduler struct {
	cron      *cron.Cron
	snapshots *services.Snapshot
	log       *slog.Logger
}

func New(snapshots *services.Snapshot, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		snapshots: snapshots,
		log:       logger,
	}
}

// Register adds the warm-refresh job. spec is a standard cron expression.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.warmRefresh); err != nil {
		return fmt.Errorf("register warm refresh: %w", err)
	}
	return nil
}

func (s *Scheduler) warmRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	resp, err := s.snapshots.Latest(ctx, true)
	if err != nil {
		s.log.Warn("warm refresh failed", "err", err)
		return
	}
	s.log.Info("warm refresh complete", "price", resp.Price, "stale", resp.Stale)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
