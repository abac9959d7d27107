package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	dbfs "github.com/garnizeh/resource/db"
	dbpkg "github.com/garnizeh/resource/internal/db"
	sqlite "github.com/garnizeh/resource/internal/repository/sqlite"
	"github.com/garnizeh/resource/pkg/models"
	"github.com/garnizeh/resource/pkg/repository"
)

func setupRepo(t *testing.T) *sqlite.Repo {
	t.Helper()
	ctx := context.Background()

	// a uniquely named shared-cache memory DB keeps tests isolated while the
	// pool can still open more than one connection
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := dbpkg.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return sqlite.New(d, nil)
}

func seedEngineer(t *testing.T, repo *sqlite.Repo, name, email string, role models.Role, maxCapacity int) int64 {
	t.Helper()
	id, err := repo.CreateEngineer(context.Background(), &models.Engineer{
		Name: name, Email: email, Role: role, Seniority: models.SeniorityMid,
		Skills: []string{"go"}, MaxCapacity: maxCapacity, Active: true,
	})
	if err != nil {
		t.Fatalf("seed engineer %s: %v", name, err)
	}
	return id
}

func seedProject(t *testing.T, repo *sqlite.Repo, name string, managerID int64) int64 {
	t.Helper()
	id, err := repo.CreateProject(context.Background(), &models.Project{
		Name: name, Description: "d", StartDate: 1000, EndDate: 2000,
		RequiredSkills: []string{"go"}, TeamSize: 3,
		Status: models.StatusPlanning, ManagerID: managerID,
	})
	if err != nil {
		t.Fatalf("seed project %s: %v", name, err)
	}
	return id
}

func TestEngineerCRUD(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	// nil engineer should error
	if _, err := repo.CreateEngineer(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil engineer")
	}

	// Non-existing ID should return nil, nil
	got, err := repo.GetEngineer(ctx, 9999)
	if err != nil {
		t.Fatalf("expected no error when getting non-existing ID")
	}
	if got != nil {
		t.Fatalf("expected nil when getting non-existing ID got: %#v", got)
	}

	id := seedEngineer(t, repo, "Alice", "alice@example.com", models.RoleEngineer, 100)
	if id == 0 {
		t.Fatalf("expected non-zero id")
	}

	got, err = repo.GetEngineer(ctx, id)
	if err != nil {
		t.Fatalf("GetEngineer error: %v", err)
	}
	if got == nil || got.Email != "alice@example.com" {
		t.Fatalf("GetEngineer wrong result: %#v", got)
	}
	if got.Version != 1 || !got.Active {
		t.Fatalf("unexpected defaults: %#v", got)
	}
	if len(got.Skills) != 1 || got.Skills[0] != "go" {
		t.Fatalf("skills not round-tripped: %#v", got.Skills)
	}

	byEmail, err := repo.GetEngineerByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetEngineerByEmail error: %v", err)
	}
	if byEmail == nil || byEmail.ID != id {
		t.Fatalf("GetEngineerByEmail wrong result: %#v", byEmail)
	}

	// profile update; max_capacity and active are not writable on this path
	got.Name = "Alice2"
	got.Skills = []string{"go", "sql"}
	got.MaxCapacity = 80
	got.Active = false
	if err := repo.UpdateEngineer(ctx, got); err != nil {
		t.Fatalf("UpdateEngineer error: %v", err)
	}
	got2, err := repo.GetEngineer(ctx, id)
	if err != nil {
		t.Fatalf("GetEngineer after update: %v", err)
	}
	if got2.Name != "Alice2" || len(got2.Skills) != 2 {
		t.Fatalf("update not persisted: %#v", got2)
	}
	if got2.MaxCapacity != 100 || !got2.Active {
		t.Fatalf("guarded fields changed through profile update: %#v", got2)
	}

	// duplicate email must be rejected by the unique index
	if _, err := repo.CreateEngineer(ctx, &models.Engineer{Name: "Dup", Email: "alice@example.com", Role: models.RoleEngineer}); err == nil {
		t.Fatalf("expected unique email violation")
	}
}

func TestListEngineersSkillFilter(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	seedEngineer(t, repo, "A", "a@example.com", models.RoleEngineer, 100)
	idB, err := repo.CreateEngineer(ctx, &models.Engineer{
		Name: "B", Email: "b@example.com", Role: models.RoleEngineer,
		Skills: []string{"rust"}, MaxCapacity: 100, Active: true,
	})
	if err != nil {
		t.Fatalf("create B: %v", err)
	}

	all, err := repo.ListEngineers(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("ListEngineers: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 engineers, got %d", len(all))
	}

	rustOnly, err := repo.ListEngineers(ctx, "rust", 50, 0)
	if err != nil {
		t.Fatalf("ListEngineers filtered: %v", err)
	}
	if len(rustOnly) != 1 || rustOnly[0].ID != idB {
		t.Fatalf("skill filter wrong: %#v", rustOnly)
	}
}

// Pagination must apply to the filtered set, not to raw rows: a page of rust
// engineers is full even when non-matching rows sit between them.
func TestListEngineersSkillFilterPagination(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	var rustIDs []int64
	for i, skill := range []string{"go", "rust", "go", "rust", "rust"} {
		id, err := repo.CreateEngineer(ctx, &models.Engineer{
			Name: fmt.Sprintf("E%d", i), Email: fmt.Sprintf("e%d@example.com", i),
			Role: models.RoleEngineer, Skills: []string{skill}, MaxCapacity: 100, Active: true,
		})
		if err != nil {
			t.Fatalf("create engineer %d: %v", i, err)
		}
		if skill == "rust" {
			rustIDs = append(rustIDs, id)
		}
	}

	first, err := repo.ListEngineers(ctx, "rust", 2, 0)
	if err != nil {
		t.Fatalf("ListEngineers page 1: %v", err)
	}
	if len(first) != 2 || first[0].ID != rustIDs[0] || first[1].ID != rustIDs[1] {
		t.Fatalf("first page wrong: %#v", first)
	}

	second, err := repo.ListEngineers(ctx, "rust", 2, 2)
	if err != nil {
		t.Fatalf("ListEngineers page 2: %v", err)
	}
	if len(second) != 1 || second[0].ID != rustIDs[2] {
		t.Fatalf("second page wrong: %#v", second)
	}
}

func TestProjectCRUD(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	managerID := seedEngineer(t, repo, "Mara", "mara@example.com", models.RoleManager, 100)
	id := seedProject(t, repo, "Payments", managerID)

	p, err := repo.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if p == nil || p.Name != "Payments" || p.ManagerID != managerID {
		t.Fatalf("GetProject wrong result: %#v", p)
	}

	p.Status = models.StatusActive
	p.Description = "payments platform"
	if err := repo.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	active, err := repo.ListProjects(ctx, models.StatusActive, 0, 50, 0)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(active) != 1 || active[0].ID != id {
		t.Fatalf("status filter wrong: %#v", active)
	}

	none, err := repo.ListProjects(ctx, models.StatusCompleted, 0, 50, 0)
	if err != nil {
		t.Fatalf("ListProjects completed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no completed projects, got %#v", none)
	}

	byManager, err := repo.ListProjects(ctx, "", managerID, 50, 0)
	if err != nil {
		t.Fatalf("ListProjects by manager: %v", err)
	}
	if len(byManager) != 1 {
		t.Fatalf("manager filter wrong: %#v", byManager)
	}
}

func TestAssignmentTxFlow(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	managerID := seedEngineer(t, repo, "Mara", "mara@example.com", models.RoleManager, 100)
	engineerID := seedEngineer(t, repo, "Evan", "evan@example.com", models.RoleEngineer, 100)
	projectID := seedProject(t, repo, "Payments", managerID)

	err := repo.InTx(ctx, func(tx repository.Tx) error {
		e, err := tx.GetEngineer(ctx, engineerID)
		if err != nil {
			return err
		}
		if _, err := tx.CreateAssignment(ctx, &models.Assignment{
			EngineerID: engineerID, ProjectID: projectID, Allocation: 60, Role: models.ProjectRoleDeveloper,
		}); err != nil {
			return err
		}
		ok, err := tx.BumpEngineerVersion(ctx, engineerID, e.Version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("version guard failed unexpectedly")
		}
		return tx.TouchProject(ctx, projectID)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	a, err := repo.GetAssignment(ctx, engineerID, projectID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a == nil || a.Allocation != 60 {
		t.Fatalf("assignment not committed: %#v", a)
	}

	byEngineer, err := repo.ListAssignmentsByEngineer(ctx, engineerID)
	if err != nil {
		t.Fatalf("ListAssignmentsByEngineer: %v", err)
	}
	byProject, err := repo.ListAssignmentsByProject(ctx, projectID)
	if err != nil {
		t.Fatalf("ListAssignmentsByProject: %v", err)
	}
	if len(byEngineer) != 1 || len(byProject) != 1 || byEngineer[0].ID != byProject[0].ID {
		t.Fatalf("ledger views disagree: %#v vs %#v", byEngineer, byProject)
	}

	e, err := repo.GetEngineer(ctx, engineerID)
	if err != nil {
		t.Fatalf("GetEngineer: %v", err)
	}
	if e.Version != 2 {
		t.Fatalf("expected version 2 after bump, got %d", e.Version)
	}

	// duplicate pair must violate the unique constraint
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		_, err := tx.CreateAssignment(ctx, &models.Assignment{
			EngineerID: engineerID, ProjectID: projectID, Allocation: 10, Role: models.ProjectRoleQA,
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected unique violation for duplicate pair")
	}

	// update then delete
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		a.Allocation = 40
		a.Role = models.ProjectRoleLead
		return tx.UpdateAssignment(ctx, a)
	})
	if err != nil {
		t.Fatalf("update assignment: %v", err)
	}
	a2, _ := repo.GetAssignment(ctx, engineerID, projectID)
	if a2.Allocation != 40 || a2.Role != models.ProjectRoleLead {
		t.Fatalf("update not persisted: %#v", a2)
	}

	err = repo.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.DeleteAssignmentsByProject(ctx, projectID); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, projectID)
	})
	if err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if p, _ := repo.GetProject(ctx, projectID); p != nil {
		t.Fatalf("project still present: %#v", p)
	}
	if orphans, _ := repo.CountOrphanAssignments(ctx); orphans != 0 {
		t.Fatalf("expected no orphans, got %d", orphans)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	managerID := seedEngineer(t, repo, "Mara", "mara@example.com", models.RoleManager, 100)
	engineerID := seedEngineer(t, repo, "Evan", "evan@example.com", models.RoleEngineer, 100)
	projectID := seedProject(t, repo, "Payments", managerID)

	wantErr := fmt.Errorf("boom")
	err := repo.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.CreateAssignment(ctx, &models.Assignment{
			EngineerID: engineerID, ProjectID: projectID, Allocation: 60, Role: models.ProjectRoleDeveloper,
		}); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected fn error back, got %v", err)
	}

	a, err := repo.GetAssignment(ctx, engineerID, projectID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a != nil {
		t.Fatalf("write survived rollback: %#v", a)
	}
}

// A profile update holding a row read from before a concurrent capacity
// raise and deactivation must not write the stale guarded fields back.
func TestProfileUpdateKeepsGuardedFields(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	managerID := seedEngineer(t, repo, "Mara", "mara@example.com", models.RoleManager, 100)
	engineerID, err := repo.CreateEngineer(ctx, &models.Engineer{
		Name: "Evan", Email: "evan@example.com", Role: models.RoleEngineer,
		Seniority: models.SeniorityMid, Skills: []string{"go"}, MaxCapacity: 50, Active: true,
	})
	if err != nil {
		t.Fatalf("create engineer: %v", err)
	}
	projectID := seedProject(t, repo, "Payments", managerID)

	stale, err := repo.GetEngineer(ctx, engineerID)
	if err != nil {
		t.Fatalf("GetEngineer: %v", err)
	}

	// a concurrent writer raises the limit, fills it, and deactivates
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.SetEngineerMaxCapacity(ctx, engineerID, 100); err != nil {
			return err
		}
		if _, err := tx.CreateAssignment(ctx, &models.Assignment{
			EngineerID: engineerID, ProjectID: projectID, Allocation: 100, Role: models.ProjectRoleDeveloper,
		}); err != nil {
			return err
		}
		if err := tx.SetEngineerActive(ctx, engineerID, false); err != nil {
			return err
		}
		ok, err := tx.BumpEngineerVersion(ctx, engineerID, stale.Version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("version guard failed unexpectedly")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	// the stale holder now writes its profile change back
	stale.Name = "Evan R."
	if err := repo.UpdateEngineer(ctx, stale); err != nil {
		t.Fatalf("UpdateEngineer: %v", err)
	}

	got, err := repo.GetEngineer(ctx, engineerID)
	if err != nil {
		t.Fatalf("GetEngineer after update: %v", err)
	}
	if got.Name != "Evan R." {
		t.Fatalf("profile change lost: %#v", got)
	}
	if got.MaxCapacity != 100 || got.Active {
		t.Fatalf("stale write clobbered guarded fields: %#v", got)
	}

	assignments, err := repo.ListAssignmentsByEngineer(ctx, engineerID)
	if err != nil {
		t.Fatalf("ListAssignmentsByEngineer: %v", err)
	}
	if total := assignments[0].Allocation; total > got.MaxCapacity {
		t.Fatalf("allocated %d exceeds max capacity %d", total, got.MaxCapacity)
	}
}

func TestBumpEngineerVersionGuard(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	engineerID := seedEngineer(t, repo, "Evan", "evan@example.com", models.RoleEngineer, 100)

	// a stale version must not match
	err := repo.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.BumpEngineerVersion(ctx, engineerID, 41)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("stale version accepted")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	// the current version matches exactly once
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		ok, err := tx.BumpEngineerVersion(ctx, engineerID, 1)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("current version rejected")
		}
		ok, err = tx.BumpEngineerVersion(ctx, engineerID, 1)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("bumped twice with the same version")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
}
