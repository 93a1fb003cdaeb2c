package scenario_test

import (
	"testing"

	"docline/internal/domain"
	"docline/internal/scenario"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		p    scenario.Profile
		want int
	}{
		{"central incoming external", scenario.Profile{DocType: domain.DocIncoming, Source: domain.SourceExternal}, 1},
		{"central incoming internal", scenario.Profile{DocType: domain.DocIncoming, Source: domain.SourceInternal}, 2},
		{"central outgoing external", scenario.Profile{DocType: domain.DocOutgoing, Source: domain.SourceExternal}, 3},
		{"central outgoing internal", scenario.Profile{DocType: domain.DocOutgoing, Source: domain.SourceInternal}, 4},
		{"central memo internal cc", scenario.Profile{DocType: domain.DocMemo, Source: domain.SourceInternal, HasCoOffices: true}, 5},
		{"central memo external", scenario.Profile{DocType: domain.DocMemo, Source: domain.SourceExternal}, 6},
		{"dept incoming external", scenario.Profile{DocType: domain.DocIncoming, Source: domain.SourceExternal, HasDepartment: true}, 7},
		{"dept incoming internal", scenario.Profile{DocType: domain.DocIncoming, Source: domain.SourceInternal, HasDepartment: true}, 8},
		{"dept outgoing external", scenario.Profile{DocType: domain.DocOutgoing, Source: domain.SourceExternal, HasDepartment: true}, 9},
		{"dept outgoing internal undirected", scenario.Profile{DocType: domain.DocOutgoing, Source: domain.SourceInternal, HasDepartment: true}, 10},
		{"dept outgoing internal directed", scenario.Profile{DocType: domain.DocOutgoing, Source: domain.SourceInternal, HasDepartment: true, HasDirectedOffices: true}, 11},
		{"dept memo internal directed", scenario.Profile{DocType: domain.DocMemo, Source: domain.SourceInternal, HasDepartment: true, HasDirectedOffices: true}, 12},
		{"dept memo undirected", scenario.Profile{DocType: domain.DocMemo, Source: domain.SourceInternal, HasDepartment: true}, 13},
		{"dept outgoing ceo direction", scenario.Profile{DocType: domain.DocOutgoing, Source: domain.SourceInternal, HasDepartment: true, HasDirectedOffices: true, RequiresCEODirection: true}, 14},
		{"memo internal central no cc", scenario.Profile{DocType: domain.DocMemo, Source: domain.SourceInternal}, scenario.Unclassified},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scenario.Classify(tc.p); got != tc.want {
				t.Fatalf("Classify(%+v) = %d, want %d", tc.p, got, tc.want)
			}
		})
	}
}

func TestCEODirectionOverridesDirectedSplit(t *testing.T) {
	p := scenario.Profile{
		DocType: domain.DocOutgoing, Source: domain.SourceInternal,
		HasDepartment: true, RequiresCEODirection: true,
	}
	if got := scenario.Classify(p); got != 14 {
		t.Fatalf("undirected with CEO direction = %d, want 14", got)
	}
}

func TestTransitionGraphShapes(t *testing.T) {
	// Full path runs through DIRECTED.
	if !scenario.CanTransition(1, domain.StatusRegistered, domain.StatusDirected) {
		t.Fatal("scenario 1 should allow REGISTERED to DIRECTED")
	}
	if scenario.CanTransition(1, domain.StatusRegistered, domain.StatusDispatched) {
		t.Fatal("scenario 1 should not skip DIRECTED")
	}
	// Dispatch path skips DIRECTED.
	if !scenario.CanTransition(4, domain.StatusRegistered, domain.StatusDispatched) {
		t.Fatal("scenario 4 should allow REGISTERED to DISPATCHED")
	}
	// Direct-receive path goes straight to RECEIVED.
	if !scenario.CanTransition(10, domain.StatusRegistered, domain.StatusReceived) {
		t.Fatal("scenario 10 should allow REGISTERED to RECEIVED")
	}
	// Short path never dispatches or receives.
	if scenario.CanTransition(3, domain.StatusRegistered, domain.StatusReceived) {
		t.Fatal("scenario 3 should not be receivable")
	}
	if !scenario.CanTransition(3, domain.StatusRegistered, domain.StatusClosed) {
		t.Fatal("scenario 3 should close from REGISTERED")
	}
	// Terminal state.
	if next := scenario.AllowedNext(1, domain.StatusClosed); len(next) != 0 {
		t.Fatalf("CLOSED should be terminal, got %v", next)
	}
}

func TestDispatchGates(t *testing.T) {
	g, ok := scenario.DispatchGateFor(1)
	if !ok || g.FromStatus != domain.StatusDirected || g.DepartmentScoped {
		t.Fatalf("scenario 1 gate = %+v, ok=%v", g, ok)
	}
	g, ok = scenario.DispatchGateFor(8)
	if !ok || g.FromStatus != domain.StatusRegistered || !g.DepartmentScoped {
		t.Fatalf("scenario 8 gate = %+v, ok=%v", g, ok)
	}
	if _, ok := scenario.DispatchGateFor(10); ok {
		t.Fatal("scenario 10 never dispatches")
	}
	if _, ok := scenario.DirectionRoles(4); ok {
		t.Fatal("scenario 4 has no direction step")
	}
	if _, ok := scenario.DirectionRoles(14); !ok {
		t.Fatal("scenario 14 has a direction step")
	}
}

func TestReceiptClasses(t *testing.T) {
	central := []int{2, 5, 10, 13}
	for _, sc := range central {
		if scenario.ReceiptClassOf(sc) != scenario.ReceiptCentral {
			t.Fatalf("scenario %d should have a central receipt", sc)
		}
	}
	if scenario.ReceiptClassOf(7) != scenario.ReceiptSelf {
		t.Fatal("scenario 7 should be self receipt")
	}
	for _, sc := range []int{1, 4, 6, 8, 11, 12, 14} {
		if scenario.ReceiptClassOf(sc) != scenario.ReceiptQuorum {
			t.Fatalf("scenario %d should be quorum receipt", sc)
		}
	}
	for _, sc := range []int{3, 9} {
		if scenario.ReceiptClassOf(sc) != scenario.ReceiptNone {
			t.Fatalf("scenario %d should have no receipt", sc)
		}
		if scenario.NeedsReceipt(sc) {
			t.Fatalf("scenario %d NeedsReceipt should be false", sc)
		}
	}
}

func TestAcknowledgmentScenarios(t *testing.T) {
	for sc := 1; sc <= 14; sc++ {
		want := sc != 5 && sc != 7
		if got := scenario.NeedsAcknowledgment(sc); got != want {
			t.Fatalf("NeedsAcknowledgment(%d) = %v, want %v", sc, got, want)
		}
	}
}

func TestForDocumentRecomputesFromState(t *testing.T) {
	dep := "fin"
	d := domain.Document{
		DocType:      domain.DocOutgoing,
		Source:       domain.SourceInternal,
		DepartmentID: &dep,
	}
	if got := scenario.ForDocument(d); got != 10 {
		t.Fatalf("undirected = %d, want 10", got)
	}
	d.DirectedOffices = []string{"hr"}
	if got := scenario.ForDocument(d); got != 11 {
		t.Fatalf("after adding a directed office = %d, want 11", got)
	}
}
