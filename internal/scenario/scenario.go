// Package scenario derives the routing scenario of a document and holds the
// per-scenario tables the workflow engine consults: allowed status
// transitions, dispatch/direction gates, acknowledgment and receipt rules.
// A scenario is never stored; it is recomputed from current document fields,
// so edits to the routing sets after registration can move a document between
// scenarios.
package scenario

import "docline/internal/domain"

// Unclassified is returned when no scenario row matches.
const Unclassified = 0

// Profile is the input to Classify: the handful of document attributes the
// scenario depends on.
type Profile struct {
	DocType              string
	Source               string
	HasDepartment        bool
	HasCoOffices         bool
	HasDirectedOffices   bool
	RequiresCEODirection bool
}

// ProfileOf extracts the classification inputs from a document.
func ProfileOf(d domain.Document) Profile {
	return Profile{
		DocType:              d.DocType,
		Source:               d.Source,
		HasDepartment:        d.DepartmentID != nil,
		HasCoOffices:         len(d.CoOffices) > 0,
		HasDirectedOffices:   len(d.DirectedOffices) > 0,
		RequiresCEODirection: d.RequiresCEODirection,
	}
}

// ForDocument classifies a document from its current state.
func ForDocument(d domain.Document) int {
	return Classify(ProfileOf(d))
}

// Classify maps a profile to one of the 14 routing scenarios, or Unclassified.
func Classify(p Profile) int {
	if !p.HasDepartment {
		switch {
		case p.DocType == domain.DocIncoming && p.Source == domain.SourceExternal:
			return 1
		case p.DocType == domain.DocIncoming && p.Source == domain.SourceInternal:
			return 2
		case p.DocType == domain.DocOutgoing && p.Source == domain.SourceExternal:
			return 3
		case p.DocType == domain.DocOutgoing && p.Source == domain.SourceInternal:
			return 4
		case p.DocType == domain.DocMemo && p.Source == domain.SourceInternal && p.HasCoOffices:
			return 5
		case p.DocType == domain.DocMemo && p.Source == domain.SourceExternal:
			return 6
		}
		return Unclassified
	}
	switch {
	case p.DocType == domain.DocIncoming && p.Source == domain.SourceExternal:
		return 7
	case p.DocType == domain.DocIncoming && p.Source == domain.SourceInternal:
		return 8
	case p.DocType == domain.DocOutgoing && p.Source == domain.SourceExternal:
		return 9
	case p.DocType == domain.DocOutgoing && p.Source == domain.SourceInternal:
		// CEO direction overrides the directed/undirected split.
		if p.RequiresCEODirection {
			return 14
		}
		if p.HasDirectedOffices {
			return 11
		}
		return 10
	case p.DocType == domain.DocMemo && p.Source == domain.SourceInternal && p.HasDirectedOffices:
		return 12
	case p.DocType == domain.DocMemo && !p.HasDirectedOffices:
		return 13
	}
	return Unclassified
}

// Transition graphs. Scenarios share one of four shapes:
//
//	full:     REGISTERED -> DIRECTED -> DISPATCHED -> RECEIVED -> ...
//	dispatch: REGISTERED -> DISPATCHED -> RECEIVED -> ...
//	direct:   REGISTERED -> RECEIVED -> ...           (no dispatch step)
//	short:    REGISTERED -> IN_PROGRESS/CLOSED        (outgoing external)
var (
	fullPath = map[string][]string{
		domain.StatusRegistered: {domain.StatusDirected},
		domain.StatusDirected:   {domain.StatusDispatched},
		domain.StatusDispatched: {domain.StatusReceived},
		domain.StatusReceived:   {domain.StatusInProgress, domain.StatusClosed},
		domain.StatusInProgress: {domain.StatusResponded, domain.StatusClosed},
		domain.StatusResponded:  {domain.StatusClosed},
	}
	shortPath = map[string][]string{
		domain.StatusRegistered: {domain.StatusInProgress, domain.StatusClosed},
		domain.StatusInProgress: {domain.StatusResponded, domain.StatusClosed},
		domain.StatusResponded:  {domain.StatusClosed},
	}
	dispatchPath = map[string][]string{
		domain.StatusRegistered: {domain.StatusDispatched},
		domain.StatusDispatched: {domain.StatusReceived},
		domain.StatusReceived:   {domain.StatusInProgress, domain.StatusClosed},
		domain.StatusInProgress: {domain.StatusResponded, domain.StatusClosed},
		domain.StatusResponded:  {domain.StatusClosed},
	}
	directReceivePath = map[string][]string{
		domain.StatusRegistered: {domain.StatusReceived},
		domain.StatusReceived:   {domain.StatusInProgress, domain.StatusClosed},
		domain.StatusInProgress: {domain.StatusResponded, domain.StatusClosed},
		domain.StatusResponded:  {domain.StatusClosed},
	}

	transitionGraph = map[int]map[string][]string{
		1: fullPath, 2: fullPath, 14: fullPath,
		3: shortPath, 9: shortPath,
		4: dispatchPath, 6: dispatchPath, 8: dispatchPath, 11: dispatchPath, 12: dispatchPath,
		5: directReceivePath, 7: directReceivePath, 10: directReceivePath, 13: directReceivePath,
	}
)

// CanTransition reports whether a scenario's graph allows from -> to.
func CanTransition(scenario int, from, to string) bool {
	graph, ok := transitionGraph[scenario]
	if !ok {
		return false
	}
	for _, next := range graph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedNext returns the statuses reachable from the given status.
func AllowedNext(scenario int, from string) []string {
	graph, ok := transitionGraph[scenario]
	if !ok {
		return nil
	}
	return graph[from]
}

// DispatchGate describes who may move a document to DISPATCHED and from which
// status. Department-scoped gates additionally require the actor's department
// to match the document's.
type DispatchGate struct {
	FromStatus       string
	Roles            []string
	DepartmentScoped bool
}

var dispatchGates = map[int]DispatchGate{
	1:  {FromStatus: domain.StatusDirected, Roles: []string{domain.RoleCEOSecretary, domain.RoleSuperAdmin}},
	2:  {FromStatus: domain.StatusDirected, Roles: []string{domain.RoleCEOSecretary, domain.RoleSuperAdmin}},
	14: {FromStatus: domain.StatusDirected, Roles: []string{domain.RoleCEOSecretary, domain.RoleSuperAdmin}},
	4:  {FromStatus: domain.StatusRegistered, Roles: []string{domain.RoleCEOSecretary, domain.RoleSuperAdmin}},
	6:  {FromStatus: domain.StatusRegistered, Roles: []string{domain.RoleCEOSecretary, domain.RoleSuperAdmin}},
	8:  {FromStatus: domain.StatusRegistered, Roles: []string{domain.RoleCXOSecretary}, DepartmentScoped: true},
	11: {FromStatus: domain.StatusRegistered, Roles: []string{domain.RoleCXOSecretary}, DepartmentScoped: true},
	12: {FromStatus: domain.StatusRegistered, Roles: []string{domain.RoleCXOSecretary}, DepartmentScoped: true},
}

// DispatchGateFor returns the dispatch gate for a scenario. ok is false for
// scenarios that never dispatch (3, 9 and the direct-receive group).
func DispatchGateFor(scenario int) (DispatchGate, bool) {
	g, ok := dispatchGates[scenario]
	return g, ok
}

// DirectionRoles lists who may move a document to DIRECTED. Only the
// CEO-direction scenarios have a direction step.
func DirectionRoles(scenario int) ([]string, bool) {
	switch scenario {
	case 1, 2, 14:
		return []string{domain.RoleCEOSecretary, domain.RoleSuperAdmin}, true
	}
	return nil, false
}

var ackScenarios = map[int]bool{
	1: true, 2: true, 3: true, 4: true, 6: true, 8: true, 9: true,
	10: true, 11: true, 12: true, 13: true, 14: true,
}

// NeedsAcknowledgment reports whether CC offices acknowledge this scenario.
func NeedsAcknowledgment(scenario int) bool {
	return ackScenarios[scenario]
}

var receiptScenarios = map[int]bool{
	1: true, 2: true, 4: true, 5: true, 6: true, 7: true, 8: true,
	10: true, 11: true, 12: true, 13: true, 14: true,
}

// NeedsReceipt reports whether this scenario has a custody handoff. Outgoing
// external letters (3, 9) are never marked received.
func NeedsReceipt(scenario int) bool {
	return receiptScenarios[scenario]
}

// ReceiptClass partitions the receipt scenarios by receiving party.
type ReceiptClass int

const (
	// ReceiptNone: scenario has no receipt step.
	ReceiptNone ReceiptClass = iota
	// ReceiptCentral: the CEO office receives; one shared receipt completes.
	ReceiptCentral
	// ReceiptSelf: the document's own department receives; one receipt completes.
	ReceiptSelf
	// ReceiptQuorum: every directed office must receive independently.
	ReceiptQuorum
)

// ReceiptClassOf returns the receiving-party rule for a scenario.
func ReceiptClassOf(scenario int) ReceiptClass {
	if !receiptScenarios[scenario] {
		return ReceiptNone
	}
	switch scenario {
	case 2, 5, 10, 13:
		return ReceiptCentral
	case 7:
		return ReceiptSelf
	default:
		return ReceiptQuorum
	}
}
