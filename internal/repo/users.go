package repo

import (
	"context"
	"database/sql"

	"docline/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO users(id, username, full_name, role, department_id, created_at)
VALUES (?,?,?,?,?,?)`, u.ID, u.Username, nullable(u.FullName), u.Role, nullableStringPtr(u.DepartmentID), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, username, full_name, role, department_id, created_at
FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id, username, full_name, role, department_id, created_at
FROM users WHERE username=?`, username)
	return scanUser(row.Scan)
}

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var fullName, departmentID sql.NullString
	err := scan(&u.ID, &u.Username, &fullName, &u.Role, &departmentID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.FullName = fullName.String
	u.DepartmentID = nullStringPtr(departmentID)
	return u, nil
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, username, full_name, role, department_id, created_at
FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
