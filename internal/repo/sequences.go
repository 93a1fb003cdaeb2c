package repo

import (
	"context"
	"database/sql"

	"docline/internal/domain"
)

// CentralKey is the number_sequences department key for documents that live at
// the central office. The composite primary key cannot hold NULL.
const CentralKey = ""

// AllocateSequenceTx hands out the next sequence value for a
// (department, doc type, year) counter. The UPDATE ... RETURNING takes a row
// lock inside the caller's transaction, so concurrent registrations serialize
// on the counter and the values come out gapless as long as the transaction
// commits.
func (r Repo) AllocateSequenceTx(ctx context.Context, tx *sql.Tx, departmentID, docType string, ecYear int) (int, error) {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO number_sequences(department_id, doc_type, ec_year, current_value)
VALUES (?,?,?,0)`, departmentID, docType, ecYear)
	if err != nil {
		return 0, err
	}
	var value int
	err = tx.QueryRowContext(ctx, `UPDATE number_sequences SET current_value = current_value + 1
WHERE department_id=? AND doc_type=? AND ec_year=? RETURNING current_value`,
		departmentID, docType, ecYear).Scan(&value)
	return value, err
}

// PeekSequence returns the current counter value without advancing it.
func (r Repo) PeekSequence(ctx context.Context, departmentID, docType string, ecYear int) (int, error) {
	var value int
	err := r.DB.QueryRowContext(ctx, `SELECT current_value FROM number_sequences
WHERE department_id=? AND doc_type=? AND ec_year=?`, departmentID, docType, ecYear).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return value, err
}

func (r Repo) UpsertNumberingRule(ctx context.Context, rule domain.NumberingRule) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO numbering_rules(id, department_id, doc_type, prefix, active)
VALUES (?,?,?,?,?)
ON CONFLICT(department_id, doc_type) DO UPDATE SET prefix=excluded.prefix, active=excluded.active`,
		rule.ID, rule.DepartmentID, rule.DocType, rule.Prefix, boolInt(rule.Active))
	return err
}

// NumberingPrefixTx resolves the ref-no prefix for a department and doc type.
// ok is false when no active rule exists and the caller should fall back to
// the department code or the configured central prefix.
func (r Repo) NumberingPrefixTx(ctx context.Context, tx *sql.Tx, departmentID, docType string) (string, bool, error) {
	var prefix string
	err := tx.QueryRowContext(ctx, `SELECT prefix FROM numbering_rules
WHERE department_id=? AND doc_type=? AND active=1`, departmentID, docType).Scan(&prefix)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return prefix, true, nil
}

func (r Repo) ListNumberingRules(ctx context.Context, departmentID string) ([]domain.NumberingRule, error) {
	query := `SELECT id, department_id, doc_type, prefix, active FROM numbering_rules`
	var args []any
	if departmentID != "" {
		query += ` WHERE department_id=?`
		args = append(args, departmentID)
	}
	query += ` ORDER BY department_id, doc_type`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NumberingRule
	for rows.Next() {
		var rule domain.NumberingRule
		var active int
		if err := rows.Scan(&rule.ID, &rule.DepartmentID, &rule.DocType, &rule.Prefix, &active); err != nil {
			return nil, err
		}
		rule.Active = active != 0
		res = append(res, rule)
	}
	return res, rows.Err()
}
