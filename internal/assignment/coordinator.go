// Package assignment orchestrates multi-record mutations of the assignment
// ledger. Every operation runs inside one storage transaction: permission,
// validation, and capacity checks all read fresh rows under that transaction,
// and either every write commits or none does.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/garnizeh/resource/internal/capacity"
	"github.com/garnizeh/resource/pkg/models"
	"github.com/garnizeh/resource/pkg/repository"
)

type Coordinator struct {
	store      repository.TxRunner
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

func New(store repository.TxRunner, logger *slog.Logger, maxRetries int, backoff time.Duration) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 25 * time.Millisecond
	}
	return &Coordinator{store: store, logger: logger, maxRetries: maxRetries, backoff: backoff}
}

// Assign creates the ledger entry binding an engineer to a project. Only the
// project's owning manager may assign; the engineer must be an active record
// with the engineer role, not already on the project, and the new allocation
// must fit within their remaining capacity.
func (c *Coordinator) Assign(ctx context.Context, projectID, engineerID int64, allocation int, role models.ProjectRole, requesterID int64) (*models.Assignment, error) {
	if allocation < 0 || allocation > 100 {
		return nil, fmt.Errorf("allocation %d out of range [0,100]: %w", allocation, ErrValidation)
	}
	if role == "" {
		role = models.ProjectRoleDeveloper
	}
	if !role.Valid() {
		return nil, fmt.Errorf("project role %q: %w", role, ErrValidation)
	}

	var out *models.Assignment
	err := c.withRetry(ctx, "assign", func(tx repository.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		if project.ManagerID != requesterID {
			return fmt.Errorf("only the project manager can assign engineers: %w", ErrForbidden)
		}

		engineer, err := tx.GetEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load engineer: %w", err)
		}
		if engineer == nil {
			return fmt.Errorf("engineer %d: %w", engineerID, ErrNotFound)
		}
		if engineer.Role != models.RoleEngineer {
			return fmt.Errorf("user %d: %w", engineerID, ErrInvalidRole)
		}
		if !engineer.Active {
			return fmt.Errorf("engineer %d: %w", engineerID, ErrInactive)
		}

		existing, err := tx.GetAssignment(ctx, engineerID, projectID)
		if err != nil {
			return fmt.Errorf("check existing assignment: %w", err)
		}
		if existing != nil {
			return ErrAlreadyAssigned
		}

		current, err := tx.ListAssignmentsByEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		if err := capacity.Check(current, 0, allocation, engineer.MaxCapacity); err != nil {
			return err
		}

		a := &models.Assignment{
			EngineerID: engineerID,
			ProjectID:  projectID,
			Allocation: allocation,
			Role:       role,
		}
		id, err := tx.CreateAssignment(ctx, a)
		if err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		a.ID = id

		// The version guard serializes writers per engineer: a concurrent
		// assign that read the same version loses here and retries against
		// fresh totals instead of committing over a stale capacity check.
		ok, err := tx.BumpEngineerVersion(ctx, engineerID, engineer.Version)
		if err != nil {
			return fmt.Errorf("bump engineer version: %w", err)
		}
		if !ok {
			return ErrConflict
		}
		if err := tx.TouchProject(ctx, projectID); err != nil {
			return fmt.Errorf("touch project: %w", err)
		}

		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("engineer assigned",
		slog.Int64("engineer_id", engineerID),
		slog.Int64("project_id", projectID),
		slog.Int("allocation", allocation),
		slog.String("role", string(role)),
	)
	return out, nil
}

// UpdateAllocation changes the allocation (and optionally the role) of an
// existing ledger entry. The capacity check excludes the entry being updated
// so it is compared against the engineer's other commitments only.
func (c *Coordinator) UpdateAllocation(ctx context.Context, projectID, engineerID int64, allocation int, role models.ProjectRole, requesterID int64) (*models.Assignment, error) {
	if allocation < 0 || allocation > 100 {
		return nil, fmt.Errorf("allocation %d out of range [0,100]: %w", allocation, ErrValidation)
	}
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("project role %q: %w", role, ErrValidation)
	}

	var out *models.Assignment
	err := c.withRetry(ctx, "update allocation", func(tx repository.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		if project.ManagerID != requesterID {
			return fmt.Errorf("only the project manager can change allocations: %w", ErrForbidden)
		}

		engineer, err := tx.GetEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load engineer: %w", err)
		}
		if engineer == nil {
			return fmt.Errorf("engineer %d: %w", engineerID, ErrNotFound)
		}

		a, err := tx.GetAssignment(ctx, engineerID, projectID)
		if err != nil {
			return fmt.Errorf("load assignment: %w", err)
		}
		if a == nil {
			return fmt.Errorf("assignment of engineer %d to project %d: %w", engineerID, projectID, ErrNotFound)
		}

		current, err := tx.ListAssignmentsByEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		if err := capacity.Check(current, projectID, allocation, engineer.MaxCapacity); err != nil {
			return err
		}

		a.Allocation = allocation
		if role != "" {
			a.Role = role
		}
		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return fmt.Errorf("update assignment: %w", err)
		}

		ok, err := tx.BumpEngineerVersion(ctx, engineerID, engineer.Version)
		if err != nil {
			return fmt.Errorf("bump engineer version: %w", err)
		}
		if !ok {
			return ErrConflict
		}
		if err := tx.TouchProject(ctx, projectID); err != nil {
			return fmt.Errorf("touch project: %w", err)
		}

		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Unassign removes the ledger entry for the pair. The project's manager may
// always unassign; the engineer may also remove themself.
func (c *Coordinator) Unassign(ctx context.Context, projectID, engineerID, requesterID int64) error {
	return c.withRetry(ctx, "unassign", func(tx repository.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		if project.ManagerID != requesterID && engineerID != requesterID {
			return fmt.Errorf("only the project manager or the engineer can unassign: %w", ErrForbidden)
		}

		a, err := tx.GetAssignment(ctx, engineerID, projectID)
		if err != nil {
			return fmt.Errorf("load assignment: %w", err)
		}
		if a == nil {
			return fmt.Errorf("assignment of engineer %d to project %d: %w", engineerID, projectID, ErrNotFound)
		}

		engineer, err := tx.GetEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load engineer: %w", err)
		}
		if engineer == nil {
			return fmt.Errorf("engineer %d: %w", engineerID, ErrNotFound)
		}

		if err := tx.DeleteAssignment(ctx, engineerID, projectID); err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
		ok, err := tx.BumpEngineerVersion(ctx, engineerID, engineer.Version)
		if err != nil {
			return fmt.Errorf("bump engineer version: %w", err)
		}
		if !ok {
			return ErrConflict
		}
		if err := tx.TouchProject(ctx, projectID); err != nil {
			return fmt.Errorf("touch project: %w", err)
		}

		c.logger.Info("engineer unassigned",
			slog.Int64("engineer_id", engineerID),
			slog.Int64("project_id", projectID),
		)
		return nil
	})
}

// DeleteProject removes the project and every ledger entry referencing it in
// one transaction, so no engineer is ever left pointing at a project that no
// longer exists.
func (c *Coordinator) DeleteProject(ctx context.Context, projectID, requesterID int64) error {
	return c.withRetry(ctx, "delete project", func(tx repository.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if project == nil {
			return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		if project.ManagerID != requesterID {
			return fmt.Errorf("only the project manager can delete the project: %w", ErrForbidden)
		}

		team, err := tx.ListAssignmentsByProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("load team: %w", err)
		}
		for _, a := range team {
			engineer, err := tx.GetEngineer(ctx, a.EngineerID)
			if err != nil {
				return fmt.Errorf("load engineer %d: %w", a.EngineerID, err)
			}
			if engineer == nil {
				continue
			}
			ok, err := tx.BumpEngineerVersion(ctx, engineer.ID, engineer.Version)
			if err != nil {
				return fmt.Errorf("bump engineer version: %w", err)
			}
			if !ok {
				return ErrConflict
			}
		}

		if err := tx.DeleteAssignmentsByProject(ctx, projectID); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if err := tx.DeleteProject(ctx, projectID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}

		c.logger.Info("project deleted",
			slog.Int64("project_id", projectID),
			slog.Int("assignments_removed", len(team)),
		)
		return nil
	})
}

// DeactivateEngineer flags the engineer inactive. Existing ledger entries are
// deliberately left in place; only new assignments are refused. The engineer
// themself or any manager may deactivate.
func (c *Coordinator) DeactivateEngineer(ctx context.Context, engineerID, requesterID int64) error {
	return c.withRetry(ctx, "deactivate engineer", func(tx repository.Tx) error {
		engineer, err := tx.GetEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load engineer: %w", err)
		}
		if engineer == nil {
			return fmt.Errorf("engineer %d: %w", engineerID, ErrNotFound)
		}

		if requesterID != engineerID {
			requester, err := tx.GetEngineer(ctx, requesterID)
			if err != nil {
				return fmt.Errorf("load requester: %w", err)
			}
			if requester == nil || requester.Role != models.RoleManager {
				return fmt.Errorf("only the engineer or a manager can deactivate: %w", ErrForbidden)
			}
		}

		if err := tx.SetEngineerActive(ctx, engineerID, false); err != nil {
			return fmt.Errorf("set inactive: %w", err)
		}
		ok, err := tx.BumpEngineerVersion(ctx, engineerID, engineer.Version)
		if err != nil {
			return fmt.Errorf("bump engineer version: %w", err)
		}
		if !ok {
			return ErrConflict
		}

		c.logger.Info("engineer deactivated", slog.Int64("engineer_id", engineerID))
		return nil
	})
}

// UpdateCapacity changes an engineer's maximum capacity. Reductions below the
// currently allocated total are rejected so the sum invariant keeps holding.
// The engineer themself or any manager may change it.
func (c *Coordinator) UpdateCapacity(ctx context.Context, engineerID int64, maxCapacity int, requesterID int64) error {
	if maxCapacity < 0 || maxCapacity > 100 {
		return fmt.Errorf("max capacity %d out of range [0,100]: %w", maxCapacity, ErrValidation)
	}

	return c.withRetry(ctx, "update capacity", func(tx repository.Tx) error {
		engineer, err := tx.GetEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load engineer: %w", err)
		}
		if engineer == nil {
			return fmt.Errorf("engineer %d: %w", engineerID, ErrNotFound)
		}

		if requesterID != engineerID {
			requester, err := tx.GetEngineer(ctx, requesterID)
			if err != nil {
				return fmt.Errorf("load requester: %w", err)
			}
			if requester == nil || requester.Role != models.RoleManager {
				return fmt.Errorf("only the engineer or a manager can change capacity: %w", ErrForbidden)
			}
		}

		current, err := tx.ListAssignmentsByEngineer(ctx, engineerID)
		if err != nil {
			return fmt.Errorf("load assignments: %w", err)
		}
		if err := capacity.Check(current, 0, 0, maxCapacity); err != nil {
			return err
		}

		ok, err := tx.BumpEngineerVersion(ctx, engineerID, engineer.Version)
		if err != nil {
			return fmt.Errorf("bump engineer version: %w", err)
		}
		if !ok {
			return ErrConflict
		}
		if err := tx.SetEngineerMaxCapacity(ctx, engineerID, maxCapacity); err != nil {
			return fmt.Errorf("set max capacity: %w", err)
		}

		return nil
	})
}

// withRetry runs op in a transaction, re-running it from scratch on optimistic
// conflicts and on SQLite lock contention, up to maxRetries attempts.
func (c *Coordinator) withRetry(ctx context.Context, name string, op func(tx repository.Tx) error) error {
	var err error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := sleep(ctx, c.backoff<<uint(attempt-1)); sleepErr != nil {
				return sleepErr
			}
			c.logger.Warn("retrying after conflict",
				slog.String("op", name),
				slog.Int("attempt", attempt+1),
			)
		}

		err = c.store.InTx(ctx, op)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
	}

	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	// modernc.org/sqlite surfaces lock contention as SQLITE_BUSY text.
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
