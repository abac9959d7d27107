package repository

import (
	"context"

	"github.com/garnizeh/resource/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.

type EngineerRepo interface {
	CreateEngineer(ctx context.Context, e *models.Engineer) (int64, error)
	GetEngineer(ctx context.Context, id int64) (*models.Engineer, error)
	GetEngineerByEmail(ctx context.Context, email string) (*models.Engineer, error)
	ListEngineers(ctx context.Context, skill string, limit, offset int) ([]models.Engineer, error)

	// UpdateEngineer persists the profile fields (name, seniority, skills)
	// only. MaxCapacity and Active are ignored: they are guarded by the
	// engineer version and change through the coordinator's transactions.
	UpdateEngineer(ctx context.Context, e *models.Engineer) error
}

type ProjectRepo interface {
	CreateProject(ctx context.Context, p *models.Project) (int64, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	ListProjects(ctx context.Context, status models.ProjectStatus, managerID int64, limit, offset int) ([]models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
}

type AssignmentRepo interface {
	GetAssignment(ctx context.Context, engineerID, projectID int64) (*models.Assignment, error)
	ListAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]models.Assignment, error)
	ListAssignmentsByProject(ctx context.Context, projectID int64) ([]models.Assignment, error)
}

// Tx is the view of the stores available inside a transaction boundary.
// Every read sees the transaction's snapshot and every write commits or rolls
// back together with the rest of the transaction.
type Tx interface {
	GetEngineer(ctx context.Context, id int64) (*models.Engineer, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetAssignment(ctx context.Context, engineerID, projectID int64) (*models.Assignment, error)
	ListAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]models.Assignment, error)
	ListAssignmentsByProject(ctx context.Context, projectID int64) ([]models.Assignment, error)

	CreateAssignment(ctx context.Context, a *models.Assignment) (int64, error)
	UpdateAssignment(ctx context.Context, a *models.Assignment) error
	DeleteAssignment(ctx context.Context, engineerID, projectID int64) error
	DeleteAssignmentsByProject(ctx context.Context, projectID int64) error
	DeleteProject(ctx context.Context, id int64) error
	SetEngineerActive(ctx context.Context, id int64, active bool) error
	SetEngineerMaxCapacity(ctx context.Context, id int64, maxCapacity int) error
	TouchProject(ctx context.Context, id int64) error

	// BumpEngineerVersion increments the engineer's revision counter, guarded
	// by the version the caller read. It reports false when the row has moved
	// on since that read (concurrent writer), in which case the caller must
	// abort and retry against fresh state.
	BumpEngineerVersion(ctx context.Context, id, version int64) (bool, error)
}

// TxRunner opens a transaction and runs fn inside it. A nil return from fn
// commits; any error rolls everything back and is returned unchanged.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
