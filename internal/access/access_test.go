package access_test

import (
	"testing"

	"docline/internal/access"
	"docline/internal/domain"
)

func actor(role, dept string) access.Actor {
	a := access.Actor{ID: "u1", Role: role}
	if dept != "" {
		a.Department = &dept
	}
	return a
}

func TestCapabilityMatrix(t *testing.T) {
	if !access.CanManageUsers(domain.RoleSuperAdmin) || access.CanManageUsers(domain.RoleCEOSecretary) {
		t.Fatal("only SUPER_ADMIN manages users")
	}
	for _, role := range []string{domain.RoleSuperAdmin, domain.RoleCEOSecretary, domain.RoleCXOSecretary} {
		if !access.CanCreateDocuments(role) {
			t.Fatalf("%s should create documents", role)
		}
	}
	for _, role := range []string{domain.RoleCEO, domain.RoleCXO} {
		if access.CanCreateDocuments(role) {
			t.Fatalf("%s should not create documents", role)
		}
	}
	if !access.CanViewAll(domain.RoleCEO) || access.CanViewAll(domain.RoleCXO) {
		t.Fatal("CEO sees everything, CXO does not")
	}
}

func TestDepartmentScope(t *testing.T) {
	fin := "fin"
	doc := domain.Document{
		DepartmentID:    &fin,
		CoOffices:       []string{"hr"},
		DirectedOffices: []string{"ict"},
	}
	for _, dept := range []string{"fin", "hr", "ict"} {
		if !access.CanView(actor(domain.RoleCXOSecretary, dept), doc) {
			t.Fatalf("department %s should be in scope", dept)
		}
	}
	if access.CanView(actor(domain.RoleCXOSecretary, "leg"), doc) {
		t.Fatal("unrelated department should be out of scope")
	}
	if access.CanView(actor(domain.RoleCXOSecretary, ""), doc) {
		t.Fatal("department-bound role without a department sees nothing")
	}
	if !access.CanView(actor(domain.RoleCEO, ""), doc) {
		t.Fatal("CEO should see everything")
	}
}

func TestEditScope(t *testing.T) {
	doc := domain.Document{CoOffices: []string{"hr"}}
	if !access.CanEdit(actor(domain.RoleCEOSecretary, ""), doc) {
		t.Fatal("CEO secretary edits everything")
	}
	if !access.CanEdit(actor(domain.RoleCXO, "hr"), doc) {
		t.Fatal("CC office should be editable scope")
	}
	if access.CanEdit(actor(domain.RoleCXO, "fin"), doc) {
		t.Fatal("unrelated CXO should not edit")
	}
}

func TestPermissionErrorMessage(t *testing.T) {
	err := access.PermissionError{Capability: "document.create"}
	if err.Error() != "permission document.create required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
