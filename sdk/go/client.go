package doclinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Docline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Document represents the API document model (partial).
type Document struct {
	ID              string   `json:"id"`
	DocType         string   `json:"doc_type"`
	Source          string   `json:"source"`
	DepartmentID    *string  `json:"department_id,omitempty"`
	RefNo           string   `json:"ref_no"`
	Subject         string   `json:"subject"`
	Status          string   `json:"status"`
	CoOffices       []string `json:"co_offices,omitempty"`
	DirectedOffices []string `json:"directed_offices,omitempty"`
	RegisteredAt    string   `json:"registered_at"`
}

// RoutingState is the derived workflow position of a document.
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

// Activity is one entry in a document's log.
type Activity struct {
	ID         int64  `json:"id"`
	DocumentID string `json:"document_id"`
	ActorID    string `json:"actor_id,omitempty"`
	Action     string `json:"action"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DocumentPage wraps list responses with cursors.
type DocumentPage struct {
	Items      []Document `json:"items"`
	NextCursor string     `json:"next_cursor"`
}

// CreateDocument registers a document. Fields follow the API's
// CreateDocumentRequest; zero values are omitted.
func (c *Client) CreateDocument(ctx context.Context, body map[string]any) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodPost, "v1/documents", body, &resp)
	return resp, err
}

// Documents returns one page of documents.
func (c *Client) Documents(ctx context.Context, limit int, cursor string) (DocumentPage, error) {
	endpoint := "v1/documents"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		parts := strings.SplitN(cursor, ",", 2)
		if len(parts) == 2 {
			sep := "?"
			if strings.Contains(endpoint, "?") {
				sep = "&"
			}
			endpoint = fmt.Sprintf("%s%scursor_created_at=%s&cursor_id=%s", endpoint, sep,
				url.QueryEscape(parts[0]), url.QueryEscape(parts[1]))
		}
	}
	var resp DocumentPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetDocument fetches a document by id.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, "v1/documents/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetStatus moves a document along its workflow.
func (c *Client) SetStatus(ctx context.Context, id, status, note string) (Document, error) {
	var resp Document
	body := map[string]any{"status": status}
	if note != "" {
		body["note"] = note
	}
	err := c.do(ctx, http.MethodPost, "v1/documents/"+url.PathEscape(id)+"/status", body, &resp)
	return resp, err
}

// Acknowledge records a CC office acknowledgment.
func (c *Client) Acknowledge(ctx context.Context, id, departmentID string) error {
	body := map[string]any{}
	if departmentID != "" {
		body["department_id"] = departmentID
	}
	return c.do(ctx, http.MethodPost, "v1/documents/"+url.PathEscape(id)+"/acknowledge", body, nil)
}

// Receive records a custody receipt.
func (c *Client) Receive(ctx context.Context, id, departmentID string) (Document, error) {
	var resp Document
	body := map[string]any{}
	if departmentID != "" {
		body["department_id"] = departmentID
	}
	err := c.do(ctx, http.MethodPost, "v1/documents/"+url.PathEscape(id)+"/receive", body, &resp)
	return resp, err
}

// Routing returns the derived routing state of a document.
func (c *Client) Routing(ctx context.Context, id string) (RoutingState, error) {
	var resp RoutingState
	err := c.do(ctx, http.MethodGet, "v1/documents/"+url.PathEscape(id)+"/routing", nil, &resp)
	return resp, err
}

// Activity returns a document's activity log.
func (c *Client) Activity(ctx context.Context, id string) ([]Activity, error) {
	var resp []Activity
	err := c.do(ctx, http.MethodGet, "v1/documents/"+url.PathEscape(id)+"/activity", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
