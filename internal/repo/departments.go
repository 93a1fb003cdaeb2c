package repo

import (
	"context"
	"database/sql"

	"docline/internal/domain"
)

func (r Repo) InsertDepartment(ctx context.Context, d domain.Department) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO departments(id, code, name, parent_id, active, created_at)
VALUES (?,?,?,?,?,?)`, d.ID, d.Code, d.Name, nullableStringPtr(d.ParentID), boolInt(d.Active), d.CreatedAt)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, code, name, parent_id, active, created_at
FROM departments WHERE id=?`, id)
	return scanDepartment(row.Scan)
}

func (r Repo) GetDepartmentByCode(ctx context.Context, code string) (domain.Department, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, code, name, parent_id, active, created_at
FROM departments WHERE code=?`, code)
	return scanDepartment(row.Scan)
}

func scanDepartment(scan func(dest ...any) error) (domain.Department, error) {
	var d domain.Department
	var parentID sql.NullString
	var active int
	err := scan(&d.ID, &d.Code, &d.Name, &parentID, &active, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	d.ParentID = nullStringPtr(parentID)
	d.Active = active != 0
	return d, nil
}

func (r Repo) ListDepartments(ctx context.Context, activeOnly bool) ([]domain.Department, error) {
	query := `SELECT id, code, name, parent_id, active, created_at FROM departments`
	if activeOnly {
		query += ` WHERE active=1`
	}
	query += ` ORDER BY code`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		d, err := scanDepartment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// DepartmentsExist reports whether every id in the list names a department.
// The first missing id is returned for the error message.
func (r Repo) DepartmentsExist(ctx context.Context, ids []string) (string, bool, error) {
	for _, id := range ids {
		var n int
		err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM departments WHERE id=?`, id).Scan(&n)
		if err == sql.ErrNoRows {
			return id, false, nil
		}
		if err != nil {
			return "", false, err
		}
	}
	return "", true, nil
}

func (r Repo) SetDepartmentActive(ctx context.Context, id string, active bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE departments SET active=? WHERE id=?`, boolInt(active), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
