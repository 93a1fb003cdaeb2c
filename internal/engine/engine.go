package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docline/internal/access"
	"docline/internal/config"
	"docline/internal/domain"
	"docline/internal/events"
	"docline/internal/repo"
	"docline/internal/scenario"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// DocumentCreateOptions are parameters for registering a document.
type DocumentCreateOptions struct {
	ID                   string
	DocType              string
	Source               string
	DepartmentID         string
	Subject              string
	Summary              string
	CompanyOfficeName    string
	SenderName           string
	ReceiverName         string
	Priority             string
	Confidential         bool
	RequiresCEODirection bool
	CoOffices            []string
	DirectedOffices      []string
	ReceivedDate         string
	WrittenDate          string
	MemoDate             string
	DueDate              string
	SignatureName        string
	ECYear               int
}

// CreateDocument registers a document: validates it, classifies its routing
// scenario, allocates the next reference number and writes everything in one
// transaction so the sequence stays gapless.
func (e Engine) CreateDocument(ctx context.Context, actor access.Actor, opts DocumentCreateOptions) (domain.Document, error) {
	if !access.CanCreateDocuments(actor.Role) {
		return domain.Document{}, access.PermissionError{Capability: "document.create"}
	}
	if actor.Role == domain.RoleCXOSecretary {
		if actor.Department == nil {
			return domain.Document{}, access.PermissionError{Capability: "document.create"}
		}
		if opts.DepartmentID != *actor.Department {
			return domain.Document{}, access.PermissionError{Capability: "document.create"}
		}
	}
	if err := validateCreate(opts); err != nil {
		return domain.Document{}, err
	}
	if opts.DepartmentID != "" {
		if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
			if err == repo.ErrNotFound {
				return domain.Document{}, ValidationError{Field: "department_id", Reason: "unknown department " + opts.DepartmentID}
			}
			return domain.Document{}, err
		}
	}
	for _, field := range []struct {
		name string
		ids  []string
	}{{"co_offices", opts.CoOffices}, {"directed_offices", opts.DirectedOffices}} {
		missing, ok, err := e.Repo.DepartmentsExist(ctx, field.ids)
		if err != nil {
			return domain.Document{}, err
		}
		if !ok {
			return domain.Document{}, ValidationError{Field: field.name, Reason: "unknown department " + missing}
		}
	}

	d := domain.Document{
		ID:                   opts.ID,
		DocType:              opts.DocType,
		Source:               opts.Source,
		Subject:              opts.Subject,
		Summary:              opts.Summary,
		CompanyOfficeName:    opts.CompanyOfficeName,
		SenderName:           opts.SenderName,
		ReceiverName:         opts.ReceiverName,
		Status:               domain.StatusRegistered,
		Priority:             opts.Priority,
		Confidential:         opts.Confidential,
		RequiresCEODirection: opts.RequiresCEODirection,
		CoOffices:            opts.CoOffices,
		DirectedOffices:      opts.DirectedOffices,
		ReceivedDate:         optionalString(opts.ReceivedDate),
		WrittenDate:          optionalString(opts.WrittenDate),
		MemoDate:             optionalString(opts.MemoDate),
		DueDate:              optionalString(opts.DueDate),
		SignatureName:        opts.SignatureName,
	}
	if opts.DepartmentID != "" {
		d.DepartmentID = &opts.DepartmentID
	}
	if actor.ID != "" {
		d.CreatedBy = &actor.ID
	}
	if scenario.ForDocument(d) == scenario.Unclassified {
		return domain.Document{}, ValidationError{Field: "doc_type", Reason: "no routing scenario matches this combination"}
	}

	now := e.now()
	d.RegisteredAt = now.UTC().Format(time.RFC3339)
	d.UpdatedAt = d.RegisteredAt
	d.ECYear = opts.ECYear
	if d.ECYear == 0 {
		d.ECYear = ECYearOf(now)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()

	seqKey := repo.CentralKey
	if d.DepartmentID != nil {
		seqKey = *d.DepartmentID
	}
	d.Prefix, err = e.resolvePrefixTx(ctx, tx, d)
	if err != nil {
		return domain.Document{}, err
	}
	d.Sequence, err = e.Repo.AllocateSequenceTx(ctx, tx, seqKey, d.DocType, d.ECYear)
	if err != nil {
		return domain.Document{}, fmt.Errorf("allocate sequence: %w", err)
	}
	d.RefNo = FormatRefNo(d.Prefix, d.Sequence, d.ECYear)
	if taken, err := e.Repo.RefNoExistsTx(ctx, tx, d.RefNo); err != nil {
		return domain.Document{}, err
	} else if taken {
		return domain.Document{}, ValidationError{Field: "ref_no", Reason: d.RefNo + " already assigned"}
	}

	if err := e.Repo.InsertDocumentTx(ctx, tx, d); err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}
	if err := e.Repo.SetCoOfficesTx(ctx, tx, d.ID, d.CoOffices); err != nil {
		return domain.Document{}, err
	}
	if err := e.Repo.SetDirectedOfficesTx(ctx, tx, d.ID, d.DirectedOffices); err != nil {
		return domain.Document{}, err
	}
	if err := e.Events.Append(ctx, tx, d.ID, actor.ID, events.ActionCreated, "registered as "+d.RefNo); err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// resolvePrefixTx picks the ref-no prefix. For departmental documents the
// order is: active numbering rule, configured default prefix, department
// code. Central documents use the configured central prefix.
func (e Engine) resolvePrefixTx(ctx context.Context, tx *sql.Tx, d domain.Document) (string, error) {
	if d.DepartmentID != nil {
		prefix, ok, err := e.Repo.NumberingPrefixTx(ctx, tx, *d.DepartmentID, d.DocType)
		if err != nil {
			return "", err
		}
		if ok {
			return prefix, nil
		}
		if e.Config != nil && e.Config.Numbering.DefaultPrefix != "" {
			return e.Config.Numbering.DefaultPrefix, nil
		}
		dep, err := e.Repo.GetDepartment(ctx, *d.DepartmentID)
		if err != nil {
			return "", err
		}
		return dep.Code, nil
	}
	if e.Config != nil && e.Config.Numbering.CentralPrefix != "" {
		return e.Config.Numbering.CentralPrefix, nil
	}
	return "CEO", nil
}

// FormatRefNo renders "PREFIX/SEQ/YY EC", e.g. "A/1/17 EC" for year 2017.
func FormatRefNo(prefix string, sequence, ecYear int) string {
	return fmt.Sprintf("%s/%d/%02d EC", prefix, sequence, ecYear%100)
}

// validateCreate enforces the per-type required fields. The matrix follows
// how each kind of correspondence actually arrives: incoming mail has a
// received date, outgoing mail a written date, memos a memo date, and the
// counterparty field depends on whether the far end is external.
func validateCreate(opts DocumentCreateOptions) error {
	switch opts.DocType {
	case domain.DocIncoming, domain.DocOutgoing, domain.DocMemo:
	default:
		return ValidationError{Field: "doc_type", Reason: "must be INCOMING, OUTGOING or MEMO"}
	}
	switch opts.Source {
	case domain.SourceExternal, domain.SourceInternal:
	default:
		return ValidationError{Field: "source", Reason: "must be EXTERNAL or INTERNAL"}
	}
	if opts.Subject == "" {
		return ValidationError{Field: "subject", Reason: "required"}
	}
	require := func(field, value string) error {
		if value == "" {
			return ValidationError{Field: field, Reason: "required for " + opts.DocType + "/" + opts.Source}
		}
		return nil
	}
	requireSet := func(field string, ids []string) error {
		if len(ids) == 0 {
			return ValidationError{Field: field, Reason: "required for " + opts.DocType + "/" + opts.Source}
		}
		return nil
	}
	switch {
	case opts.DocType == domain.DocIncoming && opts.Source == domain.SourceExternal:
		if err := require("received_date", opts.ReceivedDate); err != nil {
			return err
		}
		return require("company_office_name", opts.CompanyOfficeName)
	case opts.DocType == domain.DocIncoming && opts.Source == domain.SourceInternal:
		if err := require("received_date", opts.ReceivedDate); err != nil {
			return err
		}
		return requireSet("co_offices", opts.CoOffices)
	case opts.DocType == domain.DocOutgoing && opts.Source == domain.SourceExternal:
		if err := require("written_date", opts.WrittenDate); err != nil {
			return err
		}
		return require("company_office_name", opts.CompanyOfficeName)
	case opts.DocType == domain.DocOutgoing && opts.Source == domain.SourceInternal:
		if err := require("written_date", opts.WrittenDate); err != nil {
			return err
		}
		// A letter awaiting CEO direction has no targets yet.
		if opts.RequiresCEODirection {
			return nil
		}
		if opts.DepartmentID != "" && len(opts.DirectedOffices) == 0 {
			// Scenario 10: a departmental letter may go straight to the
			// central office with no directed targets.
			return nil
		}
		return requireSet("directed_offices", opts.DirectedOffices)
	case opts.DocType == domain.DocMemo && opts.Source == domain.SourceInternal:
		if err := require("memo_date", opts.MemoDate); err != nil {
			return err
		}
		if opts.DepartmentID == "" {
			return requireSet("co_offices", opts.CoOffices)
		}
		return nil
	case opts.DocType == domain.DocMemo && opts.Source == domain.SourceExternal:
		if err := require("memo_date", opts.MemoDate); err != nil {
			return err
		}
		if opts.DepartmentID != "" {
			// Scenario 13: a departmental external memo goes to the central
			// office and has no directed targets.
			return nil
		}
		return requireSet("directed_offices", opts.DirectedOffices)
	}
	return nil
}

// DocumentUpdateOptions patch a document. Nil pointers leave the field as is;
// routing sets replace wholesale when non-nil.
type DocumentUpdateOptions struct {
	Subject           *string
	Summary           *string
	CompanyOfficeName *string
	SenderName        *string
	ReceiverName      *string
	Priority          *string
	Confidential      *bool
	ReceivedDate      *string
	WrittenDate       *string
	MemoDate          *string
	CEODirectedDate   *string
	DueDate           *string
	CEONote           *string
	SignatureName     *string
	CoOffices         []string
	DirectedOffices   []string
}

// UpdateDocument applies a patch. Doc type, source, department and the
// numbering fields are frozen after registration; routing-set edits must
// leave the document classifiable.
func (e Engine) UpdateDocument(ctx context.Context, actor access.Actor, id string, opts DocumentUpdateOptions) (domain.Document, error) {
	d, err := e.Repo.GetDocument(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !access.CanEdit(actor, d) {
		return domain.Document{}, access.PermissionError{Capability: "document.edit"}
	}
	applyString(&d.Subject, opts.Subject)
	if opts.Subject != nil && d.Subject == "" {
		return domain.Document{}, ValidationError{Field: "subject", Reason: "required"}
	}
	applyString(&d.Summary, opts.Summary)
	applyString(&d.CompanyOfficeName, opts.CompanyOfficeName)
	applyString(&d.SenderName, opts.SenderName)
	applyString(&d.ReceiverName, opts.ReceiverName)
	applyString(&d.Priority, opts.Priority)
	if opts.Confidential != nil {
		d.Confidential = *opts.Confidential
	}
	applyDate(&d.ReceivedDate, opts.ReceivedDate)
	applyDate(&d.WrittenDate, opts.WrittenDate)
	applyDate(&d.MemoDate, opts.MemoDate)
	applyDate(&d.CEODirectedDate, opts.CEODirectedDate)
	applyDate(&d.DueDate, opts.DueDate)
	applyString(&d.CEONote, opts.CEONote)
	applyString(&d.SignatureName, opts.SignatureName)
	if opts.CoOffices != nil {
		d.CoOffices = opts.CoOffices
	}
	if opts.DirectedOffices != nil {
		d.DirectedOffices = opts.DirectedOffices
	}
	if scenario.ForDocument(d) == scenario.Unclassified {
		return domain.Document{}, ValidationError{Field: "directed_offices", Reason: "edit would leave the document without a routing scenario"}
	}
	for _, field := range []struct {
		name string
		ids  []string
	}{{"co_offices", opts.CoOffices}, {"directed_offices", opts.DirectedOffices}} {
		missing, ok, err := e.Repo.DepartmentsExist(ctx, field.ids)
		if err != nil {
			return domain.Document{}, err
		}
		if !ok {
			return domain.Document{}, ValidationError{Field: field.name, Reason: "unknown department " + missing}
		}
	}
	d.UpdatedAt = e.stamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateDocumentTx(ctx, tx, d); err != nil {
		return domain.Document{}, err
	}
	if opts.CoOffices != nil {
		if err := e.Repo.SetCoOfficesTx(ctx, tx, d.ID, d.CoOffices); err != nil {
			return domain.Document{}, err
		}
	}
	if opts.DirectedOffices != nil {
		if err := e.Repo.SetDirectedOfficesTx(ctx, tx, d.ID, d.DirectedOffices); err != nil {
			return domain.Document{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, d.ID, actor.ID, events.ActionUpdated, ""); err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// GetDocument loads a document, enforcing view scope.
func (e Engine) GetDocument(ctx context.Context, actor access.Actor, id string) (domain.Document, error) {
	d, err := e.Repo.GetDocument(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !access.CanView(actor, d) {
		return domain.Document{}, access.PermissionError{Capability: "document.view"}
	}
	return d, nil
}

// ListDocuments lists documents the actor may see. Department-bound roles are
// constrained server-side rather than trusted to filter.
func (e Engine) ListDocuments(ctx context.Context, actor access.Actor, f repo.DocumentFilters) ([]domain.Document, error) {
	docs, err := e.Repo.ListDocuments(ctx, f)
	if err != nil {
		return nil, err
	}
	if access.CanViewAll(actor.Role) {
		return docs, nil
	}
	visible := docs[:0]
	for _, d := range docs {
		if access.CanView(actor, d) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyDate(dst **string, src *string) {
	if src == nil {
		return
	}
	if *src == "" {
		*dst = nil
		return
	}
	*dst = src
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
