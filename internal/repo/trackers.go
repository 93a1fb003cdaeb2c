package repo

import (
	"context"
	"database/sql"

	"docline/internal/domain"
)

// Acknowledgments and receipts are insert-only. Uniqueness is enforced twice:
// the engine checks before inserting so it can return a typed conflict, and
// the schema constraints catch anything that slips through concurrently.

func (r Repo) InsertAcknowledgmentTx(ctx context.Context, tx *sql.Tx, a domain.Acknowledgment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO document_acknowledgments(id, document_id, department_id, user_id, created_at)
VALUES (?,?,?,?,?)`, a.ID, a.DocumentID, a.DepartmentID, nullable(a.UserID), a.CreatedAt)
	return err
}

func (r Repo) HasAcknowledgmentTx(ctx context.Context, tx *sql.Tx, documentID, departmentID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM document_acknowledgments WHERE document_id=? AND department_id=?`,
		documentID, departmentID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListAcknowledgments(ctx context.Context, documentID string) ([]domain.Acknowledgment, error) {
	return r.listAcknowledgments(ctx, r.DB, documentID)
}

func (r Repo) ListAcknowledgmentsTx(ctx context.Context, tx *sql.Tx, documentID string) ([]domain.Acknowledgment, error) {
	return r.listAcknowledgments(ctx, tx, documentID)
}

func (r Repo) listAcknowledgments(ctx context.Context, q querier, documentID string) ([]domain.Acknowledgment, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, document_id, department_id, COALESCE(user_id,''), created_at
FROM document_acknowledgments WHERE document_id=? ORDER BY created_at ASC, id ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Acknowledgment
	for rows.Next() {
		var a domain.Acknowledgment
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.DepartmentID, &a.UserID, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) InsertReceiptTx(ctx context.Context, tx *sql.Tx, rc domain.Receipt) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO document_receipts(id, document_id, department_id, user_id, created_at)
VALUES (?,?,?,?,?)`, rc.ID, rc.DocumentID, nullableStringPtr(rc.DepartmentID), nullable(rc.UserID), rc.CreatedAt)
	return err
}

// HasReceiptTx checks for a department receipt, or the central receipt when
// departmentID is nil.
func (r Repo) HasReceiptTx(ctx context.Context, tx *sql.Tx, documentID string, departmentID *string) (bool, error) {
	var n int
	var err error
	if departmentID == nil {
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM document_receipts WHERE document_id=? AND department_id IS NULL`,
			documentID).Scan(&n)
	} else {
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM document_receipts WHERE document_id=? AND department_id=?`,
			documentID, *departmentID).Scan(&n)
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) ListReceipts(ctx context.Context, documentID string) ([]domain.Receipt, error) {
	return r.listReceipts(ctx, r.DB, documentID)
}

func (r Repo) ListReceiptsTx(ctx context.Context, tx *sql.Tx, documentID string) ([]domain.Receipt, error) {
	return r.listReceipts(ctx, tx, documentID)
}

func (r Repo) listReceipts(ctx context.Context, q querier, documentID string) ([]domain.Receipt, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, document_id, department_id, COALESCE(user_id,''), created_at
FROM document_receipts WHERE document_id=? ORDER BY created_at ASC, id ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Receipt
	for rows.Next() {
		var rc domain.Receipt
		var dep sql.NullString
		if err := rows.Scan(&rc.ID, &rc.DocumentID, &dep, &rc.UserID, &rc.CreatedAt); err != nil {
			return nil, err
		}
		rc.DepartmentID = nullStringPtr(dep)
		res = append(res, rc)
	}
	return res, rows.Err()
}
