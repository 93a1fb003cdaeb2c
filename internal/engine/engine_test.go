package engine_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"docline/internal/access"
	"docline/internal/config"
	"docline/internal/db"
	"docline/internal/domain"
	"docline/internal/engine"
	"docline/internal/migrate"
	"docline/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

var (
	admin  = access.Actor{ID: "admin", Role: domain.RoleSuperAdmin}
	ceoSec = access.Actor{ID: "ceo-sec", Role: domain.RoleCEOSecretary}
)

func deptActor(id, dept string) access.Actor {
	return access.Actor{ID: id, Role: domain.RoleCXOSecretary, Department: &dept}
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, d := range []struct{ id, code, name string }{
		{"fin", "FIN", "Finance"},
		{"hr", "HR", "Human Resources"},
		{"ict", "ICT", "Information Technology"},
	} {
		err := eng.Repo.InsertDepartment(ctx, domain.Department{
			ID: d.id, Code: d.code, Name: d.name, Active: true,
			CreatedAt: "2025-01-01T00:00:00Z",
		})
		if err != nil {
			t.Fatalf("seed department %s: %v", d.id, err)
		}
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func registerIncoming(t *testing.T, env testEnv, directed ...string) domain.Document {
	t.Helper()
	d, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType:           domain.DocIncoming,
		Source:            domain.SourceExternal,
		Subject:           "Road maintenance request",
		CompanyOfficeName: "City Roads Authority",
		ReceivedDate:      "2025-01-14",
		DirectedOffices:   directed,
	})
	if err != nil {
		t.Fatalf("register incoming: %v", err)
	}
	return d
}

func TestRegisterAllocatesSequentialRefNos(t *testing.T) {
	env := newTestEnv(t)
	first := registerIncoming(t, env)
	if first.RefNo != "CEO/1/17 EC" {
		t.Fatalf("first ref no = %q, want CEO/1/17 EC", first.RefNo)
	}
	second := registerIncoming(t, env)
	if second.Sequence != 2 || second.RefNo != "CEO/2/17 EC" {
		t.Fatalf("second = seq %d ref %q", second.Sequence, second.RefNo)
	}
	if first.Status != domain.StatusRegistered {
		t.Fatalf("new document status = %s", first.Status)
	}
}

func TestDepartmentPrefixResolution(t *testing.T) {
	env := newTestEnv(t)
	opts := engine.DocumentCreateOptions{
		DocType:           domain.DocIncoming,
		Source:            domain.SourceExternal,
		DepartmentID:      "fin",
		Subject:           "Invoice from vendor",
		CompanyOfficeName: "Vendor Plc",
		ReceivedDate:      "2025-01-14",
	}
	d, err := env.Engine.CreateDocument(env.Ctx, admin, opts)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.RefNo != "FIN/1/17 EC" {
		t.Fatalf("ref no = %q, want FIN/1/17 EC (department code fallback)", d.RefNo)
	}

	err = env.Engine.Repo.UpsertNumberingRule(env.Ctx, domain.NumberingRule{
		ID: "rule-1", DepartmentID: "fin", DocType: domain.DocIncoming, Prefix: "A", Active: true,
	})
	if err != nil {
		t.Fatalf("set rule: %v", err)
	}
	d2, err := env.Engine.CreateDocument(env.Ctx, admin, opts)
	if err != nil {
		t.Fatalf("create with rule: %v", err)
	}
	if d2.RefNo != "A/2/17 EC" {
		t.Fatalf("ref no = %q, want A/2/17 EC (rule prefix, shared counter)", d2.RefNo)
	}
}

func TestConcurrentRegistrationsStayGapless(t *testing.T) {
	env := newTestEnv(t)
	const n = 6
	var wg sync.WaitGroup
	seqs := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
				DocType:           domain.DocIncoming,
				Source:            domain.SourceExternal,
				Subject:           "Concurrent letter",
				CompanyOfficeName: "Somewhere",
				ReceivedDate:      "2025-01-14",
			})
			seqs[i], errs[i] = d.Sequence, err
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("registration %d: %v", i, err)
		}
	}
	sort.Ints(seqs)
	for i, s := range seqs {
		if s != i+1 {
			t.Fatalf("sequences have a gap or duplicate: %v", seqs)
		}
	}
}

func TestRequiredFieldsByTypeAndSource(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name  string
		opts  engine.DocumentCreateOptions
		field string
	}{
		{
			"incoming external needs received date",
			engine.DocumentCreateOptions{DocType: domain.DocIncoming, Source: domain.SourceExternal,
				Subject: "x", CompanyOfficeName: "Y"},
			"received_date",
		},
		{
			"incoming external needs company",
			engine.DocumentCreateOptions{DocType: domain.DocIncoming, Source: domain.SourceExternal,
				Subject: "x", ReceivedDate: "2025-01-01"},
			"company_office_name",
		},
		{
			"outgoing external needs written date",
			engine.DocumentCreateOptions{DocType: domain.DocOutgoing, Source: domain.SourceExternal,
				Subject: "x", CompanyOfficeName: "Y"},
			"written_date",
		},
		{
			"central internal memo needs cc offices",
			engine.DocumentCreateOptions{DocType: domain.DocMemo, Source: domain.SourceInternal,
				Subject: "x", MemoDate: "2025-01-01"},
			"co_offices",
		},
		{
			"subject always required",
			engine.DocumentCreateOptions{DocType: domain.DocIncoming, Source: domain.SourceExternal,
				ReceivedDate: "2025-01-01", CompanyOfficeName: "Y"},
			"subject",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateDocument(env.Ctx, admin, tc.opts)
			var ve engine.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}

func TestCEODirectionSkipsTargetRequirement(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType:              domain.DocOutgoing,
		Source:               domain.SourceInternal,
		DepartmentID:         "fin",
		Subject:              "Budget approval request",
		WrittenDate:          "2025-01-14",
		RequiresCEODirection: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Scenario 14 runs the full path through DIRECTED.
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusDirected, "proceed per plan"); err != nil {
		t.Fatalf("direct: %v", err)
	}
	got, err := env.Engine.GetDocument(env.Ctx, ceoSec, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CEODirectedDate == nil || got.CEONote != "proceed per plan" {
		t.Fatalf("direction should stamp date and note, got %+v", got)
	}
}

func TestFullPathWithQuorumReceipts(t *testing.T) {
	env := newTestEnv(t)
	d := registerIncoming(t, env, "fin", "hr")

	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusDispatched, ""); err == nil {
		t.Fatal("dispatch before direction should fail")
	}
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusDirected, ""); err != nil {
		t.Fatalf("direct: %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusDispatched, ""); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// First directed office receives; quorum not met, status stays DISPATCHED.
	got, err := env.Engine.Receive(env.Ctx, deptActor("fin-sec", "fin"), engine.ReceiveOptions{DocumentID: d.ID})
	if err != nil {
		t.Fatalf("fin receive: %v", err)
	}
	if got.Status != domain.StatusDispatched {
		t.Fatalf("status after first receipt = %s, want DISPATCHED", got.Status)
	}

	// Duplicate receipt conflicts.
	_, err = env.Engine.Receive(env.Ctx, deptActor("fin-sec", "fin"), engine.ReceiveOptions{DocumentID: d.ID})
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("duplicate receipt: want ConflictError, got %v", err)
	}

	// Second office completes the quorum and the document advances.
	got, err = env.Engine.Receive(env.Ctx, deptActor("hr-sec", "hr"), engine.ReceiveOptions{DocumentID: d.ID})
	if err != nil {
		t.Fatalf("hr receive: %v", err)
	}
	if got.Status != domain.StatusReceived {
		t.Fatalf("status after quorum = %s, want RECEIVED", got.Status)
	}

	for _, next := range []string{domain.StatusInProgress, domain.StatusResponded, domain.StatusClosed} {
		if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, next, ""); err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
	}
}

func TestRegisterStampsCreatorFromPrincipal(t *testing.T) {
	env := newTestEnv(t)
	d := registerIncoming(t, env)
	if d.CreatedBy == nil || *d.CreatedBy != "ceo-sec" {
		t.Fatalf("created_by = %v, want ceo-sec", d.CreatedBy)
	}
	// The creator id is an audit value from the token; no matching user row
	// exists and none is required.
	if _, err := env.Engine.Repo.GetUser(env.Ctx, "ceo-sec"); err != repo.ErrNotFound {
		t.Fatalf("expected no user row for the principal, got %v", err)
	}
}

func TestRefNoCollisionLeavesCounterUntouched(t *testing.T) {
	env := newTestEnv(t)
	registerIncoming(t, env)

	// Squat on the ref no the next registration would be assigned.
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = env.Engine.Repo.InsertDocumentTx(env.Ctx, tx, domain.Document{
		ID:           "squatter",
		DocType:      domain.DocIncoming,
		Source:       domain.SourceExternal,
		Prefix:       "CEO",
		Sequence:     2,
		ECYear:       2017,
		RefNo:        "CEO/2/17 EC",
		Subject:      "Occupies the slot",
		Status:       domain.StatusRegistered,
		RegisteredAt: "2025-01-15T09:00:00Z",
		UpdatedAt:    "2025-01-15T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert squatter: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	_, err = env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType:           domain.DocIncoming,
		Source:            domain.SourceExternal,
		Subject:           "Collides",
		CompanyOfficeName: "Somewhere",
		ReceivedDate:      "2025-01-14",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) || ve.Field != "ref_no" {
		t.Fatalf("want ref_no ValidationError, got %v", err)
	}
	seq, err := env.Engine.Repo.PeekSequence(env.Ctx, repo.CentralKey, domain.DocIncoming, 2017)
	if err != nil {
		t.Fatal(err)
	}
	if seq != 1 {
		t.Fatalf("counter = %d after failed registration, want 1", seq)
	}
}

func TestOwnDepartmentReceivesDirectly(t *testing.T) {
	env := newTestEnv(t)
	// Departmental incoming external mail: the owning department's secretary
	// records the receipt and a single receipt completes the handoff.
	d, err := env.Engine.CreateDocument(env.Ctx, deptActor("fin-sec", "fin"), engine.DocumentCreateOptions{
		DocType:           domain.DocIncoming,
		Source:            domain.SourceExternal,
		DepartmentID:      "fin",
		Subject:           "Supplier correspondence",
		CompanyOfficeName: "Supplier Plc",
		ReceivedDate:      "2025-01-14",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	st, err := env.Engine.RoutingStateOf(env.Ctx, admin, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Scenario != 7 || st.ReceiptClass != "self" {
		t.Fatalf("scenario = %d class %q, want 7/self", st.Scenario, st.ReceiptClass)
	}
	var pe access.PermissionError
	_, err = env.Engine.Receive(env.Ctx, deptActor("hr-sec", "hr"), engine.ReceiveOptions{DocumentID: d.ID})
	if !errors.As(err, &pe) {
		t.Fatalf("other department receive: want PermissionError, got %v", err)
	}
	_, err = env.Engine.Receive(env.Ctx, ceoSec, engine.ReceiveOptions{DocumentID: d.ID})
	if !errors.As(err, &pe) {
		t.Fatalf("central receive: want PermissionError, got %v", err)
	}
	got, err := env.Engine.Receive(env.Ctx, deptActor("fin-sec", "fin"), engine.ReceiveOptions{DocumentID: d.ID})
	if err != nil {
		t.Fatalf("own receive: %v", err)
	}
	if got.Status != domain.StatusReceived {
		t.Fatalf("status = %s, want RECEIVED", got.Status)
	}
}

func TestDepartmentalExternalMemoNeedsNoTargets(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDocument(env.Ctx, deptActor("fin-sec", "fin"), engine.DocumentCreateOptions{
		DocType:      domain.DocMemo,
		Source:       domain.SourceExternal,
		DepartmentID: "fin",
		Subject:      "Memo to an outside body",
		MemoDate:     "2025-01-14",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	st, err := env.Engine.RoutingStateOf(env.Ctx, admin, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Scenario != 13 || st.ReceiptClass != "central" {
		t.Fatalf("scenario = %d class %q, want 13/central", st.Scenario, st.ReceiptClass)
	}
}

func TestDirectReceiveScenarioAdvancesImmediately(t *testing.T) {
	env := newTestEnv(t)
	// Departmental outgoing internal with no targets: the central office receives.
	d, err := env.Engine.CreateDocument(env.Ctx, deptActor("fin-sec", "fin"), engine.DocumentCreateOptions{
		DocType:      domain.DocOutgoing,
		Source:       domain.SourceInternal,
		DepartmentID: "fin",
		Subject:      "Quarterly report submission",
		WrittenDate:  "2025-01-14",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := env.Engine.Receive(env.Ctx, ceoSec, engine.ReceiveOptions{DocumentID: d.ID})
	if err != nil {
		t.Fatalf("central receive: %v", err)
	}
	if got.Status != domain.StatusReceived {
		t.Fatalf("status = %s, want RECEIVED", got.Status)
	}
	// A department secretary cannot record the central receipt.
	d2, err := env.Engine.CreateDocument(env.Ctx, deptActor("fin-sec", "fin"), engine.DocumentCreateOptions{
		DocType:      domain.DocOutgoing,
		Source:       domain.SourceInternal,
		DepartmentID: "fin",
		Subject:      "Another submission",
		WrittenDate:  "2025-01-14",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.Receive(env.Ctx, deptActor("fin-sec", "fin"), engine.ReceiveOptions{DocumentID: d2.ID})
	var pe access.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("want PermissionError, got %v", err)
	}
}

func TestOutgoingExternalShortPath(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType:           domain.DocOutgoing,
		Source:            domain.SourceExternal,
		Subject:           "Response to ministry",
		CompanyOfficeName: "Ministry of Trade",
		WrittenDate:       "2025-01-14",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.Receive(env.Ctx, ceoSec, engine.ReceiveOptions{DocumentID: d.ID})
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("receive on scenario 3: want ConflictError, got %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusInProgress, ""); err != nil {
		t.Fatalf("to IN_PROGRESS: %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusClosed, ""); err != nil {
		t.Fatalf("to CLOSED: %v", err)
	}
}

func TestInvalidTransitionConflicts(t *testing.T) {
	env := newTestEnv(t)
	d := registerIncoming(t, env)
	_, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusClosed, "")
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConflictError, got %v", err)
	}
}

func TestDispatchGateIsDepartmentScoped(t *testing.T) {
	env := newTestEnv(t)
	// Scenario 8: departmental incoming internal, dispatched by its own secretary.
	d, err := env.Engine.CreateDocument(env.Ctx, deptActor("fin-sec", "fin"), engine.DocumentCreateOptions{
		DocType:      domain.DocIncoming,
		Source:       domain.SourceInternal,
		DepartmentID: "fin",
		Subject:      "Internal referral",
		ReceivedDate: "2025-01-14",
		CoOffices:    []string{"hr"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.SetStatus(env.Ctx, deptActor("hr-sec", "hr"), d.ID, domain.StatusDispatched, "")
	var pe access.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("other department dispatch: want PermissionError, got %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, deptActor("fin-sec", "fin"), d.ID, domain.StatusDispatched, ""); err != nil {
		t.Fatalf("own department dispatch: %v", err)
	}
}

func TestAcknowledgeOncePerOffice(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType:           domain.DocIncoming,
		Source:            domain.SourceExternal,
		Subject:           "Circular",
		CompanyOfficeName: "Registrar",
		ReceivedDate:      "2025-01-14",
		CoOffices:         []string{"hr", "ict"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.Acknowledge(env.Ctx, deptActor("hr-sec", "hr"), engine.AcknowledgeOptions{DocumentID: d.ID}); err != nil {
		t.Fatalf("hr ack: %v", err)
	}
	_, err = env.Engine.Acknowledge(env.Ctx, deptActor("hr-sec", "hr"), engine.AcknowledgeOptions{DocumentID: d.ID})
	var ce engine.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("duplicate ack: want ConflictError, got %v", err)
	}
	// A non-CC office cannot acknowledge.
	_, err = env.Engine.Acknowledge(env.Ctx, deptActor("fin-sec", "fin"), engine.AcknowledgeOptions{DocumentID: d.ID})
	if !errors.As(err, &ce) {
		t.Fatalf("non-CC ack: want ConflictError, got %v", err)
	}

	st, err := env.Engine.RoutingStateOf(env.Ctx, ceoSec, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(st.PendingAcks) != 1 || st.PendingAcks[0] != "ict" {
		t.Fatalf("pending acks = %v, want [ict]", st.PendingAcks)
	}
}

func TestCXONeverMutates(t *testing.T) {
	env := newTestEnv(t)
	cxo := access.Actor{ID: "cxo-1", Role: domain.RoleCXO, Department: strPtr("fin")}
	_, err := env.Engine.CreateDocument(env.Ctx, cxo, engine.DocumentCreateOptions{
		DocType: domain.DocIncoming, Source: domain.SourceExternal,
		Subject: "x", CompanyOfficeName: "Y", ReceivedDate: "2025-01-01",
	})
	var pe access.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("CXO create: want PermissionError, got %v", err)
	}
	// CXO secretary cannot register for another department.
	_, err = env.Engine.CreateDocument(env.Ctx, deptActor("fin-sec", "fin"), engine.DocumentCreateOptions{
		DocType: domain.DocIncoming, Source: domain.SourceExternal,
		DepartmentID: "hr", Subject: "x", CompanyOfficeName: "Y", ReceivedDate: "2025-01-01",
	})
	if !errors.As(err, &pe) {
		t.Fatalf("cross-department create: want PermissionError, got %v", err)
	}

	// Workflow steps are for secretaries. A CXO whose department is a CC or
	// directed office still cannot acknowledge, dispatch or receive.
	d, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType: domain.DocIncoming, Source: domain.SourceExternal,
		Subject: "Circular to executives", CompanyOfficeName: "Registrar",
		ReceivedDate: "2025-01-14", CoOffices: []string{"fin"}, DirectedOffices: []string{"fin"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = env.Engine.Acknowledge(env.Ctx, cxo, engine.AcknowledgeOptions{DocumentID: d.ID})
	if !errors.As(err, &pe) {
		t.Fatalf("CXO acknowledge: want PermissionError, got %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusDirected, ""); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.SetStatus(env.Ctx, cxo, d.ID, domain.StatusDispatched, "")
	if !errors.As(err, &pe) {
		t.Fatalf("CXO dispatch: want PermissionError, got %v", err)
	}
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusDispatched, ""); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.Receive(env.Ctx, cxo, engine.ReceiveOptions{DocumentID: d.ID})
	if !errors.As(err, &pe) {
		t.Fatalf("CXO receive: want PermissionError, got %v", err)
	}
}

func TestUpdateRecomputesScenario(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType:      domain.DocOutgoing,
		Source:       domain.SourceInternal,
		DepartmentID: "fin",
		Subject:      "Letter to a sister office",
		WrittenDate:  "2025-01-14",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	st, _ := env.Engine.RoutingStateOf(env.Ctx, ceoSec, d.ID)
	if st.Scenario != 10 {
		t.Fatalf("scenario = %d, want 10", st.Scenario)
	}
	if _, err := env.Engine.UpdateDocument(env.Ctx, ceoSec, d.ID, engine.DocumentUpdateOptions{
		DirectedOffices: []string{"hr"},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	st, _ = env.Engine.RoutingStateOf(env.Ctx, ceoSec, d.ID)
	if st.Scenario != 11 {
		t.Fatalf("scenario after adding target = %d, want 11", st.Scenario)
	}
}

func TestActivityLogOnePerMutation(t *testing.T) {
	env := newTestEnv(t)
	d := registerIncoming(t, env, "fin")
	if _, err := env.Engine.SetStatus(env.Ctx, ceoSec, d.ID, domain.StatusDirected, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AddAttachments(env.Ctx, ceoSec, d.ID, []engine.AttachmentInput{
		{OriginalName: "letter.pdf", Size: 1024},
		{OriginalName: "annex.pdf", Size: 2048},
	}); err != nil {
		t.Fatal(err)
	}
	items, err := env.Engine.Repo.ListActivities(env.Ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"created", "status_changed", "attachment_added"}
	if len(items) != len(want) {
		t.Fatalf("activity count = %d, want %d (%+v)", len(items), len(want), items)
	}
	for i, a := range items {
		if a.Action != want[i] {
			t.Fatalf("activity %d = %s, want %s", i, a.Action, want[i])
		}
	}
	if items[2].Notes != "2 file(s) added" {
		t.Fatalf("attachment note = %q", items[2].Notes)
	}
}

func TestListDocumentsFiltersAndScope(t *testing.T) {
	env := newTestEnv(t)
	registerIncoming(t, env, "fin")
	if _, err := env.Engine.CreateDocument(env.Ctx, ceoSec, engine.DocumentCreateOptions{
		DocType:      domain.DocIncoming,
		Source:       domain.SourceInternal,
		DepartmentID: "hr",
		Subject:      "HR referral",
		ReceivedDate: "2025-01-14",
	}); err != nil {
		t.Fatal(err)
	}

	all, err := env.Engine.ListDocuments(env.Ctx, admin, repo.DocumentFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d documents, want 2", len(all))
	}

	hrOnly, err := env.Engine.ListDocuments(env.Ctx, deptActor("hr-sec", "hr"), repo.DocumentFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hrOnly) != 1 || hrOnly[0].Subject != "HR referral" {
		t.Fatalf("hr secretary scope = %+v", hrOnly)
	}

	byQuery, err := env.Engine.ListDocuments(env.Ctx, admin, repo.DocumentFilters{Query: "Road"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byQuery) != 1 {
		t.Fatalf("query filter matched %d, want 1", len(byQuery))
	}
}

func TestECYearDerivation(t *testing.T) {
	cases := []struct {
		t    time.Time
		want int
	}{
		{time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 2017},
		{time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC), 2017},
		{time.Date(2025, 9, 11, 0, 0, 0, 0, time.UTC), 2018},
		{time.Date(2023, 9, 11, 0, 0, 0, 0, time.UTC), 2015},
		{time.Date(2023, 9, 12, 0, 0, 0, 0, time.UTC), 2016},
	}
	for _, tc := range cases {
		if got := engine.ECYearOf(tc.t); got != tc.want {
			t.Fatalf("ECYearOf(%s) = %d, want %d", tc.t.Format("2006-01-02"), got, tc.want)
		}
	}
	if got := engine.FormatRefNo("A", 1, 2017); got != "A/1/17 EC" {
		t.Fatalf("FormatRefNo = %q", got)
	}
}

func strPtr(s string) *string { return &s }
