package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/resource/pkg/models"
)

const engineerColumns = `id, name, email, role, seniority, skills, max_capacity, active, version, created, updated`

func scanEngineer(row interface{ Scan(dest ...any) error }) (*models.Engineer, error) {
	var e models.Engineer
	var skills string
	var active int
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.Seniority, &skills, &e.MaxCapacity, &active, &e.Version, &e.Created, &e.Updated); err != nil {
		return nil, err
	}
	e.Skills = unmarshalStrings(skills)
	e.Active = active != 0
	return &e, nil
}

func (r *Repo) CreateEngineer(ctx context.Context, e *models.Engineer) (int64, error) {
	return createEngineer(ctx, r.conn.GetConn(), e)
}

func createEngineer(ctx context.Context, q dbtx, e *models.Engineer) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("engineer is nil")
	}

	ts := now()
	res, err := q.ExecContext(ctx, `INSERT INTO engineers (name, email, role, seniority, skills, max_capacity, active, version, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		e.Name, e.Email, e.Role, e.Seniority, marshalStrings(e.Skills), e.MaxCapacity, boolToInt(e.Active), ts, ts)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *Repo) GetEngineer(ctx context.Context, id int64) (*models.Engineer, error) {
	return getEngineer(ctx, r.conn.GetConn(), id)
}

func getEngineer(ctx context.Context, q dbtx, id int64) (*models.Engineer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+engineerColumns+` FROM engineers WHERE id = ?`, id)
	e, err := scanEngineer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return e, nil
}

func (r *Repo) GetEngineerByEmail(ctx context.Context, email string) (*models.Engineer, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+engineerColumns+` FROM engineers WHERE email = ?`, email)
	e, err := scanEngineer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return e, nil
}

// ListEngineers returns engineers ordered by id. When skill is non-empty only
// engineers whose skill set contains it are returned; the filter runs in Go
// because skills are stored as a JSON array.
func (r *Repo) ListEngineers(ctx context.Context, skill string, limit, offset int) ([]models.Engineer, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// the skill filter has to run before LIMIT/OFFSET or pages come up short
	query := `SELECT ` + engineerColumns + ` FROM engineers ORDER BY id LIMIT ? OFFSET ?`
	args := []any{limit, offset}
	if skill != "" {
		query = `SELECT ` + engineerColumns + ` FROM engineers
			WHERE EXISTS (SELECT 1 FROM json_each(engineers.skills) WHERE json_each.value = ?)
			ORDER BY id LIMIT ? OFFSET ?`
		args = []any{skill, limit, offset}
	}

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Engineer
	for rows.Next() {
		e, err := scanEngineer(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *e)
	}

	return out, rows.Err()
}

// UpdateEngineer writes the profile fields only. max_capacity and active are
// owned by the coordinator's transactional paths; writing them here would let
// a stale row read overwrite a concurrent capacity change or deactivation.
func (r *Repo) UpdateEngineer(ctx context.Context, e *models.Engineer) error {
	if e == nil {
		return fmt.Errorf("engineer is nil")
	}

	_, err := r.conn.Exec(ctx, `UPDATE engineers SET name = ?, seniority = ?, skills = ?, updated = ? WHERE id = ?`,
		e.Name, e.Seniority, marshalStrings(e.Skills), now(), e.ID)
	return err
}

func (v *txView) GetEngineer(ctx context.Context, id int64) (*models.Engineer, error) {
	return getEngineer(ctx, v.tx, id)
}

func (v *txView) SetEngineerActive(ctx context.Context, id int64, active bool) error {
	_, err := v.tx.ExecContext(ctx, `UPDATE engineers SET active = ?, updated = ? WHERE id = ?`, boolToInt(active), now(), id)
	return err
}

func (v *txView) SetEngineerMaxCapacity(ctx context.Context, id int64, maxCapacity int) error {
	_, err := v.tx.ExecContext(ctx, `UPDATE engineers SET max_capacity = ?, updated = ? WHERE id = ?`, maxCapacity, now(), id)
	return err
}

func (v *txView) BumpEngineerVersion(ctx context.Context, id, version int64) (bool, error) {
	res, err := v.tx.ExecContext(ctx, `UPDATE engineers SET version = version + 1, updated = ? WHERE id = ? AND version = ?`, now(), id, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
