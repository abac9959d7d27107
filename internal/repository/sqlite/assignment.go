package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/resource/pkg/models"
)

const assignmentColumns = `id, engineer_id, project_id, allocation, role, start_date, end_date, created, updated`

func scanAssignment(row interface{ Scan(dest ...any) error }) (*models.Assignment, error) {
	var a models.Assignment
	var start, end sql.NullInt64
	if err := row.Scan(&a.ID, &a.EngineerID, &a.ProjectID, &a.Allocation, &a.Role, &start, &end, &a.Created, &a.Updated); err != nil {
		return nil, err
	}
	if start.Valid {
		v := start.Int64
		a.StartDate = &v
	}
	if end.Valid {
		v := end.Int64
		a.EndDate = &v
	}
	return &a, nil
}

func (r *Repo) GetAssignment(ctx context.Context, engineerID, projectID int64) (*models.Assignment, error) {
	return getAssignment(ctx, r.conn.GetConn(), engineerID, projectID)
}

func getAssignment(ctx context.Context, q dbtx, engineerID, projectID int64) (*models.Assignment, error) {
	row := q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE engineer_id = ? AND project_id = ?`, engineerID, projectID)
	a, err := scanAssignment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return a, nil
}

func (r *Repo) ListAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]models.Assignment, error) {
	return listAssignments(ctx, r.conn.GetConn(), `engineer_id`, engineerID)
}

func (r *Repo) ListAssignmentsByProject(ctx context.Context, projectID int64) ([]models.Assignment, error) {
	return listAssignments(ctx, r.conn.GetConn(), `project_id`, projectID)
}

func listAssignments(ctx context.Context, q dbtx, column string, id int64) ([]models.Assignment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE `+column+` = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *a)
	}

	return out, rows.Err()
}

// CountOrphanAssignments counts ledger rows whose engineer or project no
// longer exists. Foreign keys should keep this at zero; the auditor checks.
func (r *Repo) CountOrphanAssignments(ctx context.Context) (int64, error) {
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM assignments a
		LEFT JOIN engineers e ON e.id = a.engineer_id
		LEFT JOIN projects p ON p.id = a.project_id
		WHERE e.id IS NULL OR p.id IS NULL`)
	var cnt int64
	if err := row.Scan(&cnt); err != nil {
		return 0, err
	}
	return cnt, nil
}

func (v *txView) GetAssignment(ctx context.Context, engineerID, projectID int64) (*models.Assignment, error) {
	return getAssignment(ctx, v.tx, engineerID, projectID)
}

func (v *txView) ListAssignmentsByEngineer(ctx context.Context, engineerID int64) ([]models.Assignment, error) {
	return listAssignments(ctx, v.tx, `engineer_id`, engineerID)
}

func (v *txView) ListAssignmentsByProject(ctx context.Context, projectID int64) ([]models.Assignment, error) {
	return listAssignments(ctx, v.tx, `project_id`, projectID)
}

func (v *txView) CreateAssignment(ctx context.Context, a *models.Assignment) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("assignment is nil")
	}

	ts := now()
	res, err := v.tx.ExecContext(ctx, `INSERT INTO assignments (engineer_id, project_id, allocation, role, start_date, end_date, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EngineerID, a.ProjectID, a.Allocation, a.Role, a.StartDate, a.EndDate, ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (v *txView) UpdateAssignment(ctx context.Context, a *models.Assignment) error {
	if a == nil {
		return fmt.Errorf("assignment is nil")
	}

	_, err := v.tx.ExecContext(ctx, `UPDATE assignments SET allocation = ?, role = ?, start_date = ?, end_date = ?, updated = ? WHERE engineer_id = ? AND project_id = ?`,
		a.Allocation, a.Role, a.StartDate, a.EndDate, now(), a.EngineerID, a.ProjectID)
	return err
}

func (v *txView) DeleteAssignment(ctx context.Context, engineerID, projectID int64) error {
	_, err := v.tx.ExecContext(ctx, `DELETE FROM assignments WHERE engineer_id = ? AND project_id = ?`, engineerID, projectID)
	return err
}

func (v *txView) DeleteAssignmentsByProject(ctx context.Context, projectID int64) error {
	_, err := v.tx.ExecContext(ctx, `DELETE FROM assignments WHERE project_id = ?`, projectID)
	return err
}
