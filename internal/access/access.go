// Package access is the single place role and department checks live. Every
// view/edit/create decision in the engine goes through these predicates
// instead of ad hoc conditionals at call sites.
package access

import (
	"fmt"

	"docline/internal/domain"
)

// Actor is the resolved identity a request arrives with. Callers must supply
// a role and, where the role is department-bound, a department; the core
// never materializes missing identity state.
type Actor struct {
	ID         string
	Role       string
	Department *string
}

// PermissionError indicates the actor's role or department is insufficient.
type PermissionError struct {
	Capability string
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("permission %s required", e.Capability)
}

// Static capability matrix.

func CanManageUsers(role string) bool {
	return role == domain.RoleSuperAdmin
}

// CanManageDirectory covers departments and numbering rules.
func CanManageDirectory(role string) bool {
	return role == domain.RoleSuperAdmin
}

func CanCreateDocuments(role string) bool {
	switch role {
	case domain.RoleSuperAdmin, domain.RoleCEOSecretary, domain.RoleCXOSecretary:
		return true
	}
	return false
}

func CanEditAll(role string) bool {
	return role == domain.RoleSuperAdmin || role == domain.RoleCEOSecretary
}

func CanViewAll(role string) bool {
	switch role {
	case domain.RoleSuperAdmin, domain.RoleCEOSecretary, domain.RoleCEO:
		return true
	}
	return false
}

// departmentInScope reports whether the actor's department equals the
// document's department or appears in its CC or directed sets. The same
// relation scopes both view and edit; it is evaluated per request, never
// cached.
func departmentInScope(dept string, d domain.Document) bool {
	if d.DepartmentID != nil && *d.DepartmentID == dept {
		return true
	}
	for _, id := range d.CoOffices {
		if id == dept {
			return true
		}
	}
	for _, id := range d.DirectedOffices {
		if id == dept {
			return true
		}
	}
	return false
}

// CanView reports whether the actor may read the document.
func CanView(a Actor, d domain.Document) bool {
	if CanViewAll(a.Role) {
		return true
	}
	return a.Department != nil && departmentInScope(*a.Department, d)
}

// CanEdit reports whether the actor may mutate the document.
func CanEdit(a Actor, d domain.Document) bool {
	if CanEditAll(a.Role) {
		return true
	}
	return a.Department != nil && departmentInScope(*a.Department, d)
}

// HasRole reports whether the actor's role is one of the given roles.
func HasRole(a Actor, roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// InDepartment reports whether the actor belongs to the given department.
func InDepartment(a Actor, dept string) bool {
	return a.Department != nil && *a.Department == dept
}
