package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"docline/internal/access"
	"docline/internal/config"
	"docline/internal/db"
	"docline/internal/domain"
	"docline/internal/engine"
	"docline/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v1", Auth: AuthConfig{JWTSecret: testSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func tokenFor(t *testing.T, id, role, department string) string {
	t.Helper()
	u := domain.User{ID: id, Role: role}
	if department != "" {
		u.DepartmentID = &department
	}
	token, err := MintToken(testSecret, u, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newTestServer(t)
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/documents", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	adminTok := tokenFor(t, "admin", domain.RoleSuperAdmin, "")
	ceoSecTok := tokenFor(t, "ceo-sec", domain.RoleCEOSecretary, "")

	// Directory first.
	var fin, hr domain.Department
	for _, dep := range []struct {
		code, name string
		out        *domain.Department
	}{{"FIN", "Finance", &fin}, {"HR", "Human Resources", &hr}} {
		res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/departments", map[string]any{
			"code": dep.code, "name": dep.name,
		}, adminTok)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create department %s: status %d: %s", dep.code, res.StatusCode, body)
		}
		if err := json.Unmarshal(body, dep.out); err != nil {
			t.Fatalf("unmarshal department: %v", err)
		}
	}

	res, body := doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents", map[string]any{
		"doc_type":            "INCOMING",
		"source":              "EXTERNAL",
		"subject":             "Audit findings",
		"company_office_name": "Federal Auditor",
		"received_date":       "2025-01-10",
		"directed_offices":    []string{fin.ID, hr.ID},
	}, ceoSecTok)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create document: status %d: %s", res.StatusCode, body)
	}
	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.RefNo == "" || doc.Status != domain.StatusRegistered {
		t.Fatalf("unexpected document %+v", doc)
	}

	// Out-of-graph move conflicts.
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents/"+doc.ID+"/status", map[string]any{
		"status": "CLOSED",
	}, ceoSecTok)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("invalid transition: status %d: %s", res.StatusCode, body)
	}

	for _, next := range []string{"DIRECTED", "DISPATCHED"} {
		res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents/"+doc.ID+"/status", map[string]any{
			"status": next,
		}, ceoSecTok)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("to %s: status %d: %s", next, res.StatusCode, body)
		}
	}

	// Quorum receipts from the two directed offices.
	finTok := tokenFor(t, "fin-sec", domain.RoleCXOSecretary, fin.ID)
	hrTok := tokenFor(t, "hr-sec", domain.RoleCXOSecretary, hr.ID)
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents/"+doc.ID+"/receive", map[string]any{}, finTok)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fin receive: status %d: %s", res.StatusCode, body)
	}
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents/"+doc.ID+"/receive", map[string]any{}, finTok)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate receive: status %d: %s", res.StatusCode, body)
	}
	res, body = doJSON(t, client, http.MethodPost, srv.URL+"/v1/documents/"+doc.ID+"/receive", map[string]any{}, hrTok)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("hr receive: status %d: %s", res.StatusCode, body)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v1/documents/"+doc.ID+"/routing", nil, ceoSecTok)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("routing: status %d: %s", res.StatusCode, body)
	}
	var st engine.RoutingState
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("unmarshal routing: %v", err)
	}
	if st.Scenario != 1 || st.Status != domain.StatusReceived || len(st.PendingReceipts) != 0 {
		t.Fatalf("routing state = %+v", st)
	}

	res, body = doJSON(t, client, http.MethodGet, srv.URL+"/v1/documents/"+doc.ID+"/activity", nil, ceoSecTok)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity: status %d: %s", res.StatusCode, body)
	}
	var activities []domain.Activity
	if err := json.Unmarshal(body, &activities); err != nil {
		t.Fatalf("unmarshal activity: %v", err)
	}
	if len(activities) == 0 || activities[0].Action != "created" {
		t.Fatalf("activity log = %+v", activities)
	}
}

func TestValidationErrorsMapTo422(t *testing.T) {
	srv := newTestServer(t)
	tok := tokenFor(t, "ceo-sec", domain.RoleCEOSecretary, "")
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/documents", map[string]any{
		"doc_type": "INCOMING",
		"source":   "EXTERNAL",
		"subject":  "Missing fields",
	}, tok)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", res.StatusCode, body)
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != "validation_failed" || envelope.Error.Details["field"] != "received_date" {
		t.Fatalf("envelope = %+v", envelope)
	}
}

func TestPermissionErrorsMapTo403(t *testing.T) {
	srv := newTestServer(t)
	cxoTok := tokenFor(t, "cxo-1", domain.RoleCXO, "")
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/documents", map[string]any{
		"doc_type":            "INCOMING",
		"source":              "EXTERNAL",
		"subject":             "Not allowed",
		"company_office_name": "X",
		"received_date":       "2025-01-10",
	}, cxoTok)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d: %s", res.StatusCode, body)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	admin := tokenFor(t, "boot-admin", domain.RoleSuperAdmin, "")

	// Create a real user, then a key bound to it.
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/users", map[string]any{
		"username": "secretary",
		"role":     domain.RoleCEOSecretary,
	}, admin)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user: status %d: %s", res.StatusCode, body)
	}
	var u domain.User
	if err := json.Unmarshal(body, &u); err != nil {
		t.Fatal(err)
	}
	_, plaintext, err := srv.Engine.IssueAPIKey(ctx,
		accessActor("boot-admin", domain.RoleSuperAdmin), u.ID, "ci")
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/me", nil)
	req.Header.Set("X-Api-Key", plaintext)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me with api key: status %d", resp.StatusCode)
	}
	var me domain.User
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatal(err)
	}
	if me.Username != "secretary" {
		t.Fatalf("me = %+v", me)
	}
}

func accessActor(id, role string) access.Actor {
	return access.Actor{ID: id, Role: role}
}
