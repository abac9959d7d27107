// Package audit runs a background sweep over the stores, checking the
// invariants the coordinator maintains: no engineer over capacity and no
// ledger entry referencing a missing engineer or project. Findings are logged;
// the auditor never mutates state.
package audit

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/garnizeh/resource/internal/capacity"
	"github.com/garnizeh/resource/pkg/models"
)

// Store is the read surface the auditor needs.
type Store interface {
	ListEngineers(ctx context.Context, skill string, limit, offset int) ([]models.Engineer, error)
	ListAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]models.Assignment, error)
	CountOrphanAssignments(ctx context.Context) (int64, error)
}

type Auditor struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(store Store, logger *slog.Logger, interval time.Duration) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Auditor{store: store, logger: logger, interval: interval, stop: make(chan struct{})}
}

// Start launches the audit goroutine
func (a *Auditor) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.loop(ctx)
}

// Stop signals the auditor to stop and waits for it
func (a *Auditor) Stop() {
	close(a.stop)
	a.wg.Wait()
}

func (a *Auditor) loop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			a.logger.Info("auditor stopping")
			return
		case <-ctx.Done():
			a.logger.Info("context canceled, auditor exiting")
			return
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("audit sweep", "err", err)
			}
		}
	}
}

// RunOnce performs a single sweep and returns the first storage error hit.
func (a *Auditor) RunOnce(ctx context.Context) error {
	const pageSize = 200
	offset := 0
	for {
		engineers, err := a.store.ListEngineers(ctx, "", pageSize, offset)
		if err != nil {
			return err
		}
		if len(engineers) == 0 {
			break
		}

		for _, e := range engineers {
			assignments, err := a.store.ListAssignmentsByEngineer(ctx, e.ID)
			if err != nil {
				return err
			}
			total := capacity.Allocated(assignments, 0)
			if total > e.MaxCapacity {
				a.logger.Error("capacity invariant violated",
					slog.Int64("engineer_id", e.ID),
					slog.Int("allocated", total),
					slog.Int("max_capacity", e.MaxCapacity),
				)
			}
		}

		if len(engineers) < pageSize {
			break
		}
		offset += pageSize
	}

	orphans, err := a.store.CountOrphanAssignments(ctx)
	if err != nil {
		return err
	}
	if orphans > 0 {
		a.logger.Error("orphan ledger entries found", slog.Int64("count", orphans))
	}

	return nil
}
