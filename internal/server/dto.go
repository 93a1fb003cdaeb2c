package server

import (
	"docline/internal/engine"
)

type CreateDocumentRequest struct {
	ID                   string   `json:"id,omitempty"`
	DocType              string   `json:"doc_type" enum:"INCOMING,OUTGOING,MEMO"`
	Source               string   `json:"source" enum:"EXTERNAL,INTERNAL"`
	DepartmentID         string   `json:"department_id,omitempty"`
	Subject              string   `json:"subject"`
	Summary              string   `json:"summary,omitempty"`
	CompanyOfficeName    string   `json:"company_office_name,omitempty"`
	SenderName           string   `json:"sender_name,omitempty"`
	ReceiverName         string   `json:"receiver_name,omitempty"`
	Priority             string   `json:"priority,omitempty"`
	Confidential         bool     `json:"confidential,omitempty"`
	RequiresCEODirection bool     `json:"requires_ceo_direction,omitempty"`
	CoOffices            []string `json:"co_offices,omitempty"`
	DirectedOffices      []string `json:"directed_offices,omitempty"`
	ReceivedDate         string   `json:"received_date,omitempty" format:"date"`
	WrittenDate          string   `json:"written_date,omitempty" format:"date"`
	MemoDate             string   `json:"memo_date,omitempty" format:"date"`
	DueDate              string   `json:"due_date,omitempty" format:"date"`
	SignatureName        string   `json:"signature_name,omitempty"`
	ECYear               int      `json:"ec_year,omitempty"`
}

func (r CreateDocumentRequest) options() engine.DocumentCreateOptions {
	return engine.DocumentCreateOptions{
		ID:                   r.ID,
		DocType:              r.DocType,
		Source:               r.Source,
		DepartmentID:         r.DepartmentID,
		Subject:              r.Subject,
		Summary:              r.Summary,
		CompanyOfficeName:    r.CompanyOfficeName,
		SenderName:           r.SenderName,
		ReceiverName:         r.ReceiverName,
		Priority:             r.Priority,
		Confidential:         r.Confidential,
		RequiresCEODirection: r.RequiresCEODirection,
		CoOffices:            r.CoOffices,
		DirectedOffices:      r.DirectedOffices,
		ReceivedDate:         r.ReceivedDate,
		WrittenDate:          r.WrittenDate,
		MemoDate:             r.MemoDate,
		DueDate:              r.DueDate,
		SignatureName:        r.SignatureName,
		ECYear:               r.ECYear,
	}
}

type UpdateDocumentRequest struct {
	Subject           *string  `json:"subject,omitempty"`
	Summary           *string  `json:"summary,omitempty"`
	CompanyOfficeName *string  `json:"company_office_name,omitempty"`
	SenderName        *string  `json:"sender_name,omitempty"`
	ReceiverName      *string  `json:"receiver_name,omitempty"`
	Priority          *string  `json:"priority,omitempty"`
	Confidential      *bool    `json:"confidential,omitempty"`
	ReceivedDate      *string  `json:"received_date,omitempty"`
	WrittenDate       *string  `json:"written_date,omitempty"`
	MemoDate          *string  `json:"memo_date,omitempty"`
	CEODirectedDate   *string  `json:"ceo_directed_date,omitempty"`
	DueDate           *string  `json:"due_date,omitempty"`
	CEONote           *string  `json:"ceo_note,omitempty"`
	SignatureName     *string  `json:"signature_name,omitempty"`
	CoOffices         []string `json:"co_offices,omitempty"`
	DirectedOffices   []string `json:"directed_offices,omitempty"`
}

func (r UpdateDocumentRequest) options() engine.DocumentUpdateOptions {
	return engine.DocumentUpdateOptions{
		Subject:           r.Subject,
		Summary:           r.Summary,
		CompanyOfficeName: r.CompanyOfficeName,
		SenderName:        r.SenderName,
		ReceiverName:      r.ReceiverName,
		Priority:          r.Priority,
		Confidential:      r.Confidential,
		ReceivedDate:      r.ReceivedDate,
		WrittenDate:       r.WrittenDate,
		MemoDate:          r.MemoDate,
		CEODirectedDate:   r.CEODirectedDate,
		DueDate:           r.DueDate,
		CEONote:           r.CEONote,
		SignatureName:     r.SignatureName,
		CoOffices:         r.CoOffices,
		DirectedOffices:   r.DirectedOffices,
	}
}

type SetStatusRequest struct {
	Status string `json:"status" enum:"REGISTERED,DIRECTED,DISPATCHED,RECEIVED,IN_PROGRESS,RESPONDED,CLOSED"`
	Note   string `json:"note,omitempty"`
}

type AcknowledgeRequest struct {
	DepartmentID string `json:"department_id,omitempty"`
}

type ReceiveRequest struct {
	DepartmentID string `json:"department_id,omitempty"`
}

type AttachmentFileRequest struct {
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size,omitempty"`
	StorageKey   string `json:"storage_key,omitempty"`
}

type AddAttachmentsRequest struct {
	Files []AttachmentFileRequest `json:"files"`
}

type CreateDepartmentRequest struct {
	ID       string `json:"id,omitempty"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

type CreateUserRequest struct {
	ID           string `json:"id,omitempty"`
	Username     string `json:"username"`
	FullName     string `json:"full_name,omitempty"`
	Role         string `json:"role" enum:"SUPER_ADMIN,CEO_SECRETARY,CXO_SECRETARY,CEO,CXO"`
	DepartmentID string `json:"department_id,omitempty"`
}

type CreateAPIKeyRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}
