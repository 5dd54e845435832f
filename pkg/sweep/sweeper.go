// Package sweep runs the periodic maintenance jobs: lifting blocks
// whose expiry has passed and pruning stale entries from the
// duplicate-content index. Expiry is lazy everywhere else; the sweeper
// is what eventually turns an expired block into an inactive row with
// an audit trace.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/dedup"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/metrics"
)

// liftedBySweep is recorded as the lifter on expiry-lifted blocks, so
// manual lifts and expiry lifts stay distinguishable in the ledger.
const liftedBySweep = "sweep:expiry"

// Sweeper lifts expired blocks and prunes the dedup index on a cron
// schedule.
type Sweeper struct {
	blocks      ledger.BlockStore
	audit       *ledger.Audit
	dedup       dedup.Index
	dedupWindow time.Duration
	collector   *metrics.Collector
	cfg         config.SweepConfig
	cron        *cron.Cron
	logger      *slog.Logger
	mu          sync.Mutex
	running     bool
}

// New creates a sweeper. dedupIdx may be nil when the duplicate check
// is disabled; the sweeper then only handles block expiry.
func New(blocks ledger.BlockStore, audit *ledger.Audit, dedupIdx dedup.Index, dedupWindow time.Duration, collector *metrics.Collector, cfg config.SweepConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		blocks:      blocks,
		audit:       audit,
		dedup:       dedupIdx,
		dedupWindow: dedupWindow,
		collector:   collector,
		cfg:         cfg,
		cron:        cron.New(),
		logger:      logger.With("component", "sweep"),
	}
}

// Start schedules sweep runs. Returns immediately; the cron scheduler
// runs in its own goroutine until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled || s.cfg.Schedule == "" {
		s.logger.Info("sweeper disabled")
		return nil
	}

	if _, err := cron.ParseStandard(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.Run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("sweeper started", "schedule", s.cfg.Schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("sweeper stopped")
	}
}

// Run executes one sweep cycle: expired blocks first, then the dedup
// index. Callable directly for tests and for a sweep-now CLI path.
func (s *Sweeper) Run(ctx context.Context) {
	now := time.Now().UTC()

	lifted, err := s.SweepExpired(ctx, now)
	if err != nil {
		s.logger.Error("expired-block sweep failed", "error", err)
	} else if lifted > 0 {
		s.logger.Info("expired-block sweep completed", "lifted", lifted)
	} else {
		s.logger.Debug("expired-block sweep completed, nothing to lift")
	}

	if s.dedup != nil && s.dedupWindow > 0 {
		removed, err := s.dedup.Cleanup(ctx, now.Add(-s.dedupWindow))
		if err != nil {
			s.logger.Error("dedup index cleanup failed", "error", err)
		} else if removed > 0 {
			s.logger.Info("dedup index cleanup completed", "removed", removed)
		}
	}
}

// SweepExpired lifts every active block whose expiry is at or before
// asOf. Each lift writes a BLOCK_EXPIRED audit entry before the row is
// deactivated; a block whose entry cannot be written stays active and
// is retried on the next cycle.
func (s *Sweeper) SweepExpired(ctx context.Context, asOf time.Time) (int, error) {
	expired, err := s.blocks.ListExpired(ctx, asOf)
	if err != nil {
		return 0, fmt.Errorf("list expired blocks: %w", err)
	}

	lifted := 0
	for _, b := range expired {
		auditID, err := s.audit.Append(ctx, &ledger.AuditEntry{
			Stream: ledger.DefaultStream,
			Source: "sweep",
			Kind:   ledger.KindBlockExpired,
			Actor:  liftedBySweep,
			Event: map[string]interface{}{
				"blockId":    b.ID,
				"entityType": b.EntityType,
				"entityId":   b.EntityID,
				"expiresAt":  b.ExpiresAt,
			},
		})
		if err != nil {
			s.logger.Error("audit append failed, leaving block active",
				"block_id", b.ID, "error", err)
			continue
		}

		if err := s.blocks.Deactivate(ctx, b.ID, liftedBySweep, asOf); err != nil {
			// Lifted concurrently or store fault; either way the next
			// cycle sees the truth.
			s.logger.Warn("deactivate failed", "block_id", b.ID, "error", err)
			continue
		}

		if s.collector != nil {
			s.collector.RecordBlockLifted()
		}
		s.logger.Info("expired block lifted", "block_id", b.ID,
			"entity_type", b.EntityType, "entity_id", b.EntityID, "audit_id", auditID)
		lifted++
	}

	return lifted, nil
}

// IsRunning reports whether the scheduler is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
