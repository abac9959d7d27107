package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/resource/pkg/models"
)

const projectColumns = `id, name, description, start_date, end_date, required_skills, team_size, status, manager_id, created, updated`

func scanProject(row interface{ Scan(dest ...any) error }) (*models.Project, error) {
	var p models.Project
	var skills string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &skills, &p.TeamSize, &p.Status, &p.ManagerID, &p.Created, &p.Updated); err != nil {
		return nil, err
	}
	p.RequiredSkills = unmarshalStrings(skills)
	return &p, nil
}

func (r *Repo) CreateProject(ctx context.Context, p *models.Project) (int64, error) {
	if p == nil {
		return 0, fmt.Errorf("project is nil")
	}

	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO projects (name, description, start_date, end_date, required_skills, team_size, status, manager_id, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.StartDate, p.EndDate, marshalStrings(p.RequiredSkills), p.TeamSize, p.Status, p.ManagerID, ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *Repo) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return getProject(ctx, r.conn.GetConn(), id)
}

func getProject(ctx context.Context, q dbtx, id int64) (*models.Project, error) {
	row := q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return p, nil
}

// ListProjects returns projects ordered by id, optionally filtered by status
// and/or owning manager.
func (r *Repo) ListProjects(ctx context.Context, status models.ProjectStatus, managerID int64, limit, offset int) ([]models.Project, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1=1`
	args := []any{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if managerID > 0 {
		query += ` AND manager_id = ?`
		args = append(args, managerID)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *p)
	}

	return out, rows.Err()
}

func (r *Repo) UpdateProject(ctx context.Context, p *models.Project) error {
	if p == nil {
		return fmt.Errorf("project is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE projects SET name = ?, description = ?, start_date = ?, end_date = ?, required_skills = ?, team_size = ?, status = ?, updated = ? WHERE id = ?`,
		p.Name, p.Description, p.StartDate, p.EndDate, marshalStrings(p.RequiredSkills), p.TeamSize, p.Status, now(), p.ID)
	return err
}

func (v *txView) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return getProject(ctx, v.tx, id)
}

func (v *txView) DeleteProject(ctx context.Context, id int64) error {
	_, err := v.tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return err
}

func (v *txView) TouchProject(ctx context.Context, id int64) error {
	_, err := v.tx.ExecContext(ctx, `UPDATE projects SET updated = ? WHERE id = ?`, now(), id)
	return err
}
