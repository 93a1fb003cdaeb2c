package domain

// Document types.
const (
	DocIncoming = "INCOMING"
	DocOutgoing = "OUTGOING"
	DocMemo     = "MEMO"
)

// Document sources.
const (
	SourceExternal = "EXTERNAL"
	SourceInternal = "INTERNAL"
)

// Document statuses.
const (
	StatusRegistered = "REGISTERED"
	StatusDirected   = "DIRECTED"
	StatusDispatched = "DISPATCHED"
	StatusReceived   = "RECEIVED"
	StatusInProgress = "IN_PROGRESS"
	StatusResponded  = "RESPONDED"
	StatusClosed     = "CLOSED"
)

// User roles.
const (
	RoleSuperAdmin   = "SUPER_ADMIN"
	RoleCEOSecretary = "CEO_SECRETARY"
	RoleCXOSecretary = "CXO_SECRETARY"
	RoleCEO          = "CEO"
	RoleCXO          = "CXO"
)

type Department struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	ParentID  *string `json:"parent_id,omitempty"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type User struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	FullName     string  `json:"full_name,omitempty"`
	Role         string  `json:"role" enum:"SUPER_ADMIN,CEO_SECRETARY,CXO_SECRETARY,CEO,CXO"`
	DepartmentID *string `json:"department_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// Document is a tracked piece of correspondence. A nil DepartmentID means the
// document lives at the central (CEO) office. Prefix, Sequence and ECYear are
// frozen at registration; Status only moves through the workflow engine.
type Document struct {
	ID                   string   `json:"id"`
	DocType              string   `json:"doc_type" enum:"INCOMING,OUTGOING,MEMO"`
	Source               string   `json:"source" enum:"EXTERNAL,INTERNAL"`
	DepartmentID         *string  `json:"department_id,omitempty"`
	Prefix               string   `json:"prefix"`
	Sequence             int      `json:"sequence"`
	ECYear               int      `json:"ec_year"`
	RefNo                string   `json:"ref_no"`
	Subject              string   `json:"subject"`
	Summary              string   `json:"summary,omitempty"`
	CompanyOfficeName    string   `json:"company_office_name,omitempty"`
	SenderName           string   `json:"sender_name,omitempty"`
	ReceiverName         string   `json:"receiver_name,omitempty"`
	Status               string   `json:"status" enum:"REGISTERED,DIRECTED,DISPATCHED,RECEIVED,IN_PROGRESS,RESPONDED,CLOSED"`
	Priority             string   `json:"priority,omitempty"`
	Confidential         bool     `json:"confidential"`
	RequiresCEODirection bool     `json:"requires_ceo_direction"`
	CoOffices            []string `json:"co_offices,omitempty"`
	DirectedOffices      []string `json:"directed_offices,omitempty"`
	ReceivedDate         *string  `json:"received_date,omitempty" format:"date"`
	WrittenDate          *string  `json:"written_date,omitempty" format:"date"`
	MemoDate             *string  `json:"memo_date,omitempty" format:"date"`
	CEODirectedDate      *string  `json:"ceo_directed_date,omitempty" format:"date"`
	DueDate              *string  `json:"due_date,omitempty" format:"date"`
	CEONote              string   `json:"ceo_note,omitempty"`
	SignatureName        string   `json:"signature_name,omitempty"`
	CreatedBy            *string  `json:"created_by,omitempty"`
	RegisteredAt         string   `json:"registered_at" format:"date-time"`
	UpdatedAt            string   `json:"updated_at" format:"date-time"`
}

type NumberingRule struct {
	ID           string `json:"id"`
	DepartmentID string `json:"department_id"`
	DocType      string `json:"doc_type" enum:"INCOMING,OUTGOING,MEMO"`
	Prefix       string `json:"prefix"`
	Active       bool   `json:"active"`
}

type NumberSequence struct {
	DepartmentID string `json:"department_id"`
	DocType      string `json:"doc_type"`
	ECYear       int    `json:"ec_year"`
	CurrentValue int    `json:"current_value"`
}

// Acknowledgment records a CC office marking a document as seen. Insert-only;
// one row per (document, department).
type Acknowledgment struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	DepartmentID string `json:"department_id"`
	UserID       string `json:"user_id,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Receipt records a custody handoff. A nil DepartmentID is the shared central
// receipt used when the CEO office itself is the receiving party.
type Receipt struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"document_id"`
	DepartmentID *string `json:"department_id,omitempty"`
	UserID       string  `json:"user_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type Activity struct {
	ID         int64  `json:"id"`
	DocumentID string `json:"document_id"`
	ActorID    string `json:"actor_id,omitempty"`
	Action     string `json:"action"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Attachment struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	StorageKey   string `json:"storage_key"`
	UploadedBy   string `json:"uploaded_by,omitempty"`
	UploadedAt   string `json:"uploaded_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
