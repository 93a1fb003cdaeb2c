package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"docline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const documentColumns = `id,doc_type,source,department_id,prefix,sequence,ec_year,ref_no,subject,summary,
company_office_name,sender_name,receiver_name,status,priority,confidential,requires_ceo_direction,
received_date,written_date,memo_date,ceo_directed_date,due_date,ceo_note,signature_name,created_by,
registered_at,updated_at`

func scanDocument(scan func(dest ...any) error) (domain.Document, error) {
	var d domain.Document
	var departmentID, summary, companyOffice, senderName, receiverName, priority sql.NullString
	var receivedDate, writtenDate, memoDate, ceoDirectedDate, dueDate sql.NullString
	var ceoNote, signatureName, createdBy sql.NullString
	var confidential, requiresDirection int
	err := scan(&d.ID, &d.DocType, &d.Source, &departmentID, &d.Prefix, &d.Sequence, &d.ECYear, &d.RefNo,
		&d.Subject, &summary, &companyOffice, &senderName, &receiverName, &d.Status, &priority,
		&confidential, &requiresDirection, &receivedDate, &writtenDate, &memoDate, &ceoDirectedDate,
		&dueDate, &ceoNote, &signatureName, &createdBy, &d.RegisteredAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if departmentID.Valid {
		d.DepartmentID = &departmentID.String
	}
	d.Summary = summary.String
	d.CompanyOfficeName = companyOffice.String
	d.SenderName = senderName.String
	d.ReceiverName = receiverName.String
	d.Priority = priority.String
	d.Confidential = confidential != 0
	d.RequiresCEODirection = requiresDirection != 0
	d.ReceivedDate = nullStringPtr(receivedDate)
	d.WrittenDate = nullStringPtr(writtenDate)
	d.MemoDate = nullStringPtr(memoDate)
	d.CEODirectedDate = nullStringPtr(ceoDirectedDate)
	d.DueDate = nullStringPtr(dueDate)
	d.CEONote = ceoNote.String
	d.SignatureName = signatureName.String
	if createdBy.Valid {
		d.CreatedBy = &createdBy.String
	}
	return d, nil
}

func (r Repo) InsertDocumentTx(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO documents(`+documentColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.DocType, d.Source, nullableStringPtr(d.DepartmentID), d.Prefix, d.Sequence, d.ECYear, d.RefNo,
		d.Subject, nullable(d.Summary), nullable(d.CompanyOfficeName), nullable(d.SenderName),
		nullable(d.ReceiverName), d.Status, nullable(d.Priority), boolInt(d.Confidential),
		boolInt(d.RequiresCEODirection), nullableStringPtr(d.ReceivedDate), nullableStringPtr(d.WrittenDate),
		nullableStringPtr(d.MemoDate), nullableStringPtr(d.CEODirectedDate), nullableStringPtr(d.DueDate),
		nullable(d.CEONote), nullable(d.SignatureName), nullableStringPtr(d.CreatedBy),
		d.RegisteredAt, d.UpdatedAt)
	return err
}

// UpdateDocumentTx rewrites the mutable fields. Numbering fields, doc type,
// source, department and the CEO-direction flag stay frozen.
func (r Repo) UpdateDocumentTx(ctx context.Context, tx *sql.Tx, d domain.Document) error {
	_, err := tx.ExecContext(ctx, `UPDATE documents SET subject=?, summary=?, company_office_name=?,
sender_name=?, receiver_name=?, priority=?, confidential=?, received_date=?, written_date=?, memo_date=?,
ceo_directed_date=?, due_date=?, ceo_note=?, signature_name=?, updated_at=? WHERE id=?`,
		d.Subject, nullable(d.Summary), nullable(d.CompanyOfficeName), nullable(d.SenderName),
		nullable(d.ReceiverName), nullable(d.Priority), boolInt(d.Confidential),
		nullableStringPtr(d.ReceivedDate), nullableStringPtr(d.WrittenDate), nullableStringPtr(d.MemoDate),
		nullableStringPtr(d.CEODirectedDate), nullableStringPtr(d.DueDate), nullable(d.CEONote),
		nullable(d.SignatureName), d.UpdatedAt, d.ID)
	return err
}

// SetDocumentStatusTx is a compare-and-set on status. It returns false when
// the document was not in fromStatus, so a concurrent transition loses
// deterministically instead of overwriting.
func (r Repo) SetDocumentStatusTx(ctx context.Context, tx *sql.Tx, id, fromStatus, toStatus, updatedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE documents SET status=?, updated_at=? WHERE id=? AND status=?`,
		toStatus, updatedAt, id, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return r.getDocument(ctx, r.DB, id)
}

func (r Repo) GetDocumentTx(ctx context.Context, tx *sql.Tx, id string) (domain.Document, error) {
	return r.getDocument(ctx, tx, id)
}

func (r Repo) getDocument(ctx context.Context, q querier, id string) (domain.Document, error) {
	row := q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=?`, id)
	d, err := scanDocument(row.Scan)
	if err != nil {
		return d, err
	}
	d.CoOffices, err = r.listOffices(ctx, q, `document_co_offices`, id)
	if err != nil {
		return d, err
	}
	d.DirectedOffices, err = r.listOffices(ctx, q, `document_directed_offices`, id)
	return d, err
}

func (r Repo) GetDocumentByRefNo(ctx context.Context, refNo string) (domain.Document, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE ref_no=?`, refNo)
	d, err := scanDocument(row.Scan)
	if err != nil {
		return d, err
	}
	return r.getDocument(ctx, r.DB, d.ID)
}

func (r Repo) RefNoExistsTx(ctx context.Context, tx *sql.Tx, refNo string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE ref_no=? LIMIT 1`, refNo).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) listOffices(ctx context.Context, q querier, table, documentID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT department_id FROM `+table+` WHERE document_id=? ORDER BY department_id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetCoOfficesTx replaces the CC set for a document.
func (r Repo) SetCoOfficesTx(ctx context.Context, tx *sql.Tx, documentID string, departments []string) error {
	return r.setOffices(ctx, tx, `document_co_offices`, documentID, departments)
}

// SetDirectedOfficesTx replaces the routing-target set for a document.
func (r Repo) SetDirectedOfficesTx(ctx context.Context, tx *sql.Tx, documentID string, departments []string) error {
	return r.setOffices(ctx, tx, `document_directed_offices`, documentID, departments)
}

func (r Repo) setOffices(ctx context.Context, tx *sql.Tx, table, documentID string, departments []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_id=?`, documentID); err != nil {
		return err
	}
	for _, dep := range departments {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+`(document_id, department_id) VALUES (?,?)`, documentID, dep); err != nil {
			return err
		}
	}
	return nil
}

type DocumentFilters struct {
	Query           string
	DocType         string
	Status          string
	DepartmentID    string
	CoOffice        string
	DirectedOffice  string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListDocuments(ctx context.Context, f DocumentFilters) ([]domain.Document, error) {
	var clauses []string
	var args []any
	if f.Query != "" {
		clauses = append(clauses, `(ref_no LIKE ? OR subject LIKE ? OR sender_name LIKE ? OR receiver_name LIKE ?)`)
		like := "%" + f.Query + "%"
		args = append(args, like, like, like, like)
	}
	if f.DocType != "" {
		clauses = append(clauses, "doc_type=?")
		args = append(args, f.DocType)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.DepartmentID != "" {
		clauses = append(clauses, "department_id=?")
		args = append(args, f.DepartmentID)
	}
	if f.CoOffice != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM document_co_offices co WHERE co.document_id=documents.id AND co.department_id=?)`)
		args = append(args, f.CoOffice)
	}
	if f.DirectedOffice != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM document_directed_offices dir WHERE dir.document_id=documents.id AND dir.department_id=?)`)
		args = append(args, f.DirectedOffice)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(registered_at < ? OR (registered_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + documentColumns + ` FROM documents ` + where + ` ORDER BY registered_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].CoOffices, err = r.listOffices(ctx, r.DB, `document_co_offices`, res[i].ID); err != nil {
			return nil, err
		}
		if res[i].DirectedOffices, err = r.listOffices(ctx, r.DB, `document_directed_offices`, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) CountDocumentsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) ListActivities(ctx context.Context, documentID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,document_id,COALESCE(actor_id,''),action,COALESCE(notes,''),created_at
FROM activities WHERE document_id=? ORDER BY id ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.ActorID, &a.Action, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) InsertAttachmentTx(ctx context.Context, tx *sql.Tx, a domain.Attachment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO attachments(id,document_id,original_name,size,storage_key,uploaded_by,uploaded_at)
VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.DocumentID, a.OriginalName, a.Size, a.StorageKey, nullable(a.UploadedBy), a.UploadedAt)
	return err
}

func (r Repo) ListAttachments(ctx context.Context, documentID string) ([]domain.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,document_id,original_name,size,storage_key,COALESCE(uploaded_by,''),uploaded_at
FROM attachments WHERE document_id=? ORDER BY uploaded_at ASC, id ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.OriginalName, &a.Size, &a.StorageKey, &a.UploadedBy, &a.UploadedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
