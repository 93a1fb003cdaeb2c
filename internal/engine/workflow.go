package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"docline/internal/access"
	"docline/internal/domain"
	"docline/internal/events"
	"docline/internal/scenario"
)

var validStatuses = map[string]bool{
	domain.StatusRegistered: true,
	domain.StatusDirected:   true,
	domain.StatusDispatched: true,
	domain.StatusReceived:   true,
	domain.StatusInProgress: true,
	domain.StatusResponded:  true,
	domain.StatusClosed:     true,
}

// SetStatus moves a document along its scenario's transition graph. Role
// gates apply on the DIRECTED and DISPATCHED steps; all transitions are
// compare-and-set so concurrent movers conflict instead of racing.
func (e Engine) SetStatus(ctx context.Context, actor access.Actor, id, toStatus, note string) (domain.Document, error) {
	if !validStatuses[toStatus] {
		return domain.Document{}, ValidationError{Field: "status", Reason: "unknown status " + toStatus}
	}
	d, err := e.Repo.GetDocument(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !access.CanEdit(actor, d) {
		return domain.Document{}, access.PermissionError{Capability: "document.edit"}
	}
	sc := scenario.ForDocument(d)
	if !scenario.CanTransition(sc, d.Status, toStatus) {
		allowed := scenario.AllowedNext(sc, d.Status)
		if len(allowed) == 0 {
			return domain.Document{}, ConflictError{Reason: fmt.Sprintf("no transitions from %s in scenario %d", d.Status, sc)}
		}
		return domain.Document{}, ConflictError{Reason: fmt.Sprintf("cannot move %s to %s; allowed: %s", d.Status, toStatus, strings.Join(allowed, ", "))}
	}
	switch toStatus {
	case domain.StatusDirected:
		roles, ok := scenario.DirectionRoles(sc)
		if !ok || !e.gatePasses(actor, roles, false, d) {
			return domain.Document{}, access.PermissionError{Capability: "document.direct"}
		}
	case domain.StatusDispatched:
		gate, ok := scenario.DispatchGateFor(sc)
		if !ok || !e.gatePasses(actor, gate.Roles, gate.DepartmentScoped, d) {
			return domain.Document{}, access.PermissionError{Capability: "document.dispatch"}
		}
	}
	from := d.Status
	d.Status = toStatus
	d.UpdatedAt = e.stamp()
	if toStatus == domain.StatusDirected && d.CEODirectedDate == nil {
		today := e.now().UTC().Format("2006-01-02")
		d.CEODirectedDate = &today
		d.CEONote = note
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()

	moved, err := e.Repo.SetDocumentStatusTx(ctx, tx, d.ID, from, toStatus, d.UpdatedAt)
	if err != nil {
		return domain.Document{}, err
	}
	if !moved {
		return domain.Document{}, ConflictError{Reason: "document status changed concurrently"}
	}
	if toStatus == domain.StatusDirected {
		if err := e.Repo.UpdateDocumentTx(ctx, tx, d); err != nil {
			return domain.Document{}, err
		}
	}
	notes := from + " to " + toStatus
	if note != "" {
		notes += ": " + note
	}
	if err := e.Events.Append(ctx, tx, d.ID, actor.ID, events.ActionStatusChanged, notes); err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// gatePasses checks a role gate. SUPER_ADMIN always passes; department-scoped
// gates also require the actor to belong to the document's department.
func (e Engine) gatePasses(actor access.Actor, roles []string, departmentScoped bool, d domain.Document) bool {
	if actor.Role == domain.RoleSuperAdmin {
		return true
	}
	if !access.HasRole(actor, roles...) {
		return false
	}
	if departmentScoped {
		return d.DepartmentID != nil && access.InDepartment(actor, *d.DepartmentID)
	}
	return true
}

// AcknowledgeOptions identify which CC office is acknowledging. DepartmentID
// is required for roles without a department of their own.
type AcknowledgeOptions struct {
	DocumentID   string
	DepartmentID string
}

// Acknowledge records that a CC office has seen the document. One row per
// office; a second attempt conflicts. Acknowledgments never move status.
func (e Engine) Acknowledge(ctx context.Context, actor access.Actor, opts AcknowledgeOptions) (domain.Acknowledgment, error) {
	d, err := e.Repo.GetDocument(ctx, opts.DocumentID)
	if err != nil {
		return domain.Acknowledgment{}, err
	}
	sc := scenario.ForDocument(d)
	if !scenario.NeedsAcknowledgment(sc) {
		return domain.Acknowledgment{}, ConflictError{Reason: fmt.Sprintf("scenario %d has no acknowledgment step", sc)}
	}
	if !access.HasRole(actor, domain.RoleSuperAdmin, domain.RoleCXOSecretary) {
		return domain.Acknowledgment{}, access.PermissionError{Capability: "document.acknowledge"}
	}
	dept := opts.DepartmentID
	if dept == "" && actor.Department != nil {
		dept = *actor.Department
	}
	if dept == "" {
		return domain.Acknowledgment{}, ValidationError{Field: "department_id", Reason: "required"}
	}
	if actor.Role != domain.RoleSuperAdmin && !access.InDepartment(actor, dept) {
		return domain.Acknowledgment{}, access.PermissionError{Capability: "document.acknowledge"}
	}
	if !contains(d.CoOffices, dept) {
		return domain.Acknowledgment{}, ConflictError{Reason: "department " + dept + " is not a CC office of this document"}
	}

	ack := domain.Acknowledgment{
		ID:           uuid.NewString(),
		DocumentID:   d.ID,
		DepartmentID: dept,
		UserID:       actor.ID,
		CreatedAt:    e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Acknowledgment{}, err
	}
	defer tx.Rollback()

	if dup, err := e.Repo.HasAcknowledgmentTx(ctx, tx, d.ID, dept); err != nil {
		return domain.Acknowledgment{}, err
	} else if dup {
		return domain.Acknowledgment{}, ConflictError{Reason: "department " + dept + " already acknowledged"}
	}
	if err := e.Repo.InsertAcknowledgmentTx(ctx, tx, ack); err != nil {
		return domain.Acknowledgment{}, err
	}
	if err := e.Events.Append(ctx, tx, d.ID, actor.ID, events.ActionAcknowledged, "by "+dept); err != nil {
		return domain.Acknowledgment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Acknowledgment{}, err
	}
	return ack, nil
}

// ReceiveOptions identify the receiving party. DepartmentID is only consulted
// for quorum scenarios when the actor has no department of their own.
type ReceiveOptions struct {
	DocumentID   string
	DepartmentID string
}

// Receive records a custody handoff. Who may receive depends on the
// scenario's receipt class; when the receiving side is complete the document
// auto-advances to RECEIVED in the same transaction.
func (e Engine) Receive(ctx context.Context, actor access.Actor, opts ReceiveOptions) (domain.Document, error) {
	d, err := e.Repo.GetDocument(ctx, opts.DocumentID)
	if err != nil {
		return domain.Document{}, err
	}
	sc := scenario.ForDocument(d)
	class := scenario.ReceiptClassOf(sc)
	if class == scenario.ReceiptNone {
		return domain.Document{}, ConflictError{Reason: fmt.Sprintf("scenario %d has no receipt step", sc)}
	}
	if !scenario.CanTransition(sc, d.Status, domain.StatusReceived) {
		return domain.Document{}, ConflictError{Reason: fmt.Sprintf("document in %s cannot be received yet", d.Status)}
	}

	var receiptDept *string
	switch class {
	case scenario.ReceiptCentral:
		if !access.HasRole(actor, domain.RoleSuperAdmin, domain.RoleCEOSecretary) {
			return domain.Document{}, access.PermissionError{Capability: "document.receive"}
		}
	case scenario.ReceiptSelf:
		if d.DepartmentID == nil {
			return domain.Document{}, ConflictError{Reason: "document has no owning department"}
		}
		if actor.Role != domain.RoleSuperAdmin {
			if actor.Role != domain.RoleCXOSecretary || !access.InDepartment(actor, *d.DepartmentID) {
				return domain.Document{}, access.PermissionError{Capability: "document.receive"}
			}
		}
		receiptDept = d.DepartmentID
	case scenario.ReceiptQuorum:
		dept := opts.DepartmentID
		if dept == "" && actor.Department != nil {
			dept = *actor.Department
		}
		if dept == "" {
			return domain.Document{}, ValidationError{Field: "department_id", Reason: "required"}
		}
		if actor.Role != domain.RoleSuperAdmin {
			if actor.Role != domain.RoleCXOSecretary || !access.InDepartment(actor, dept) {
				return domain.Document{}, access.PermissionError{Capability: "document.receive"}
			}
		}
		if !contains(d.DirectedOffices, dept) {
			return domain.Document{}, ConflictError{Reason: "department " + dept + " is not a directed office of this document"}
		}
		receiptDept = &dept
	}

	rc := domain.Receipt{
		ID:           uuid.NewString(),
		DocumentID:   d.ID,
		DepartmentID: receiptDept,
		UserID:       actor.ID,
		CreatedAt:    e.stamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()

	if dup, err := e.Repo.HasReceiptTx(ctx, tx, d.ID, receiptDept); err != nil {
		return domain.Document{}, err
	} else if dup {
		return domain.Document{}, ConflictError{Reason: "already received"}
	}
	if err := e.Repo.InsertReceiptTx(ctx, tx, rc); err != nil {
		return domain.Document{}, err
	}
	who := "central office"
	if receiptDept != nil {
		who = *receiptDept
	}
	if err := e.Events.Append(ctx, tx, d.ID, actor.ID, events.ActionReceived, "by "+who); err != nil {
		return domain.Document{}, err
	}

	complete := true
	if class == scenario.ReceiptQuorum {
		receipts, err := e.Repo.ListReceiptsTx(ctx, tx, d.ID)
		if err != nil {
			return domain.Document{}, err
		}
		have := map[string]bool{}
		for _, r := range receipts {
			if r.DepartmentID != nil {
				have[*r.DepartmentID] = true
			}
		}
		for _, office := range d.DirectedOffices {
			if !have[office] {
				complete = false
				break
			}
		}
	}
	if complete {
		from := d.Status
		d.Status = domain.StatusReceived
		d.UpdatedAt = e.stamp()
		moved, err := e.Repo.SetDocumentStatusTx(ctx, tx, d.ID, from, d.Status, d.UpdatedAt)
		if err != nil {
			return domain.Document{}, err
		}
		if !moved {
			return domain.Document{}, ConflictError{Reason: "document status changed concurrently"}
		}
		if err := e.Events.Append(ctx, tx, d.ID, actor.ID, events.ActionStatusChanged, from+" to "+d.Status); err != nil {
			return domain.Document{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// AttachmentInput describes one file registered by reference. Bytes are kept
// by the caller's store; only metadata lands here.
type AttachmentInput struct {
	OriginalName string
	Size         int64
	StorageKey   string
}

// AddAttachments registers attachment metadata and appends one activity entry
// for the whole batch.
func (e Engine) AddAttachments(ctx context.Context, actor access.Actor, documentID string, files []AttachmentInput) ([]domain.Attachment, error) {
	if len(files) == 0 {
		return nil, ValidationError{Field: "files", Reason: "at least one file required"}
	}
	d, err := e.Repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit(actor, d) {
		return nil, access.PermissionError{Capability: "document.edit"}
	}
	now := e.stamp()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var out []domain.Attachment
	for _, f := range files {
		if f.OriginalName == "" {
			return nil, ValidationError{Field: "original_name", Reason: "required"}
		}
		a := domain.Attachment{
			ID:           uuid.NewString(),
			DocumentID:   d.ID,
			OriginalName: f.OriginalName,
			Size:         f.Size,
			StorageKey:   f.StorageKey,
			UploadedBy:   actor.ID,
			UploadedAt:   now,
		}
		if a.StorageKey == "" {
			a.StorageKey = a.ID
		}
		if err := e.Repo.InsertAttachmentTx(ctx, tx, a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	note := fmt.Sprintf("%d file(s) added", len(files))
	if err := e.Events.Append(ctx, tx, d.ID, actor.ID, events.ActionAttachmentAdded, note); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// RoutingState is the derived workflow position of a document: its scenario,
// what may happen next, and which parties still owe an acknowledgment or
// receipt.
type RoutingState struct {
	Scenario        int      `json:"scenario"`
	Status          string   `json:"status"`
	AllowedNext     []string `json:"allowed_next,omitempty"`
	NeedsAck        bool     `json:"needs_ack"`
	PendingAcks     []string `json:"pending_acks,omitempty"`
	NeedsReceipt    bool     `json:"needs_receipt"`
	ReceiptClass    string   `json:"receipt_class,omitempty"`
	PendingReceipts []string `json:"pending_receipts,omitempty"`
	Complete        bool     `json:"complete"`
}

// RoutingStateOf computes the routing state for a document the actor may see.
func (e Engine) RoutingStateOf(ctx context.Context, actor access.Actor, id string) (RoutingState, error) {
	d, err := e.Repo.GetDocument(ctx, id)
	if err != nil {
		return RoutingState{}, err
	}
	if !access.CanView(actor, d) {
		return RoutingState{}, access.PermissionError{Capability: "document.view"}
	}
	sc := scenario.ForDocument(d)
	st := RoutingState{
		Scenario:     sc,
		Status:       d.Status,
		AllowedNext:  scenario.AllowedNext(sc, d.Status),
		NeedsAck:     scenario.NeedsAcknowledgment(sc) && len(d.CoOffices) > 0,
		NeedsReceipt: scenario.NeedsReceipt(sc),
	}
	if st.NeedsAck {
		acks, err := e.Repo.ListAcknowledgments(ctx, d.ID)
		if err != nil {
			return RoutingState{}, err
		}
		acked := map[string]bool{}
		for _, a := range acks {
			acked[a.DepartmentID] = true
		}
		for _, office := range d.CoOffices {
			if !acked[office] {
				st.PendingAcks = append(st.PendingAcks, office)
			}
		}
	}
	switch scenario.ReceiptClassOf(sc) {
	case scenario.ReceiptCentral:
		st.ReceiptClass = "central"
	case scenario.ReceiptSelf:
		st.ReceiptClass = "self"
	case scenario.ReceiptQuorum:
		st.ReceiptClass = "quorum"
	}
	if st.NeedsReceipt {
		receipts, err := e.Repo.ListReceipts(ctx, d.ID)
		if err != nil {
			return RoutingState{}, err
		}
		switch scenario.ReceiptClassOf(sc) {
		case scenario.ReceiptCentral:
			if len(receipts) == 0 {
				st.PendingReceipts = append(st.PendingReceipts, "central")
			}
		case scenario.ReceiptSelf:
			if len(receipts) == 0 && d.DepartmentID != nil {
				st.PendingReceipts = append(st.PendingReceipts, *d.DepartmentID)
			}
		case scenario.ReceiptQuorum:
			have := map[string]bool{}
			for _, r := range receipts {
				if r.DepartmentID != nil {
					have[*r.DepartmentID] = true
				}
			}
			for _, office := range d.DirectedOffices {
				if !have[office] {
					st.PendingReceipts = append(st.PendingReceipts, office)
				}
			}
		}
	}
	st.Complete = len(st.PendingAcks) == 0 && len(st.PendingReceipts) == 0
	return st, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
