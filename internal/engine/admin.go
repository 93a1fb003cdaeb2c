package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"docline/internal/access"
	"docline/internal/domain"
	"docline/internal/repo"
)

// DepartmentCreateOptions are parameters for adding a department.
type DepartmentCreateOptions struct {
	ID       string
	Code     string
	Name     string
	ParentID string
}

func (e Engine) CreateDepartment(ctx context.Context, actor access.Actor, opts DepartmentCreateOptions) (domain.Department, error) {
	if !access.CanManageDirectory(actor.Role) {
		return domain.Department{}, access.PermissionError{Capability: "department.manage"}
	}
	opts.Code = strings.TrimSpace(opts.Code)
	if opts.Code == "" {
		return domain.Department{}, ValidationError{Field: "code", Reason: "required"}
	}
	if opts.Name == "" {
		return domain.Department{}, ValidationError{Field: "name", Reason: "required"}
	}
	if _, err := e.Repo.GetDepartmentByCode(ctx, opts.Code); err == nil {
		return domain.Department{}, ConflictError{Reason: "department code " + opts.Code + " already exists"}
	} else if err != repo.ErrNotFound {
		return domain.Department{}, err
	}
	d := domain.Department{
		ID:        opts.ID,
		Code:      opts.Code,
		Name:      opts.Name,
		ParentID:  optionalString(opts.ParentID),
		Active:    true,
		CreatedAt: e.stamp(),
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := e.Repo.InsertDepartment(ctx, d); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

// seedDepartments is the default office directory for a fresh workspace.
var seedDepartments = []struct{ Code, Name string }{
	{"FIN", "Finance"},
	{"HR", "Human Resources"},
	{"ICT", "Information Technology"},
	{"LEG", "Legal Services"},
	{"OPS", "Operations"},
	{"AUD", "Internal Audit"},
	{"PLN", "Strategy and Planning"},
}

// SeedDepartments inserts the default directory, skipping codes that already
// exist. It returns the departments it created.
func (e Engine) SeedDepartments(ctx context.Context, actor access.Actor) ([]domain.Department, error) {
	if !access.CanManageDirectory(actor.Role) {
		return nil, access.PermissionError{Capability: "department.manage"}
	}
	var created []domain.Department
	for _, s := range seedDepartments {
		if _, err := e.Repo.GetDepartmentByCode(ctx, s.Code); err == nil {
			continue
		} else if err != repo.ErrNotFound {
			return nil, err
		}
		d := domain.Department{
			ID:        uuid.NewString(),
			Code:      s.Code,
			Name:      s.Name,
			Active:    true,
			CreatedAt: e.stamp(),
		}
		if err := e.Repo.InsertDepartment(ctx, d); err != nil {
			return nil, err
		}
		created = append(created, d)
	}
	return created, nil
}

// UserCreateOptions are parameters for adding a user.
type UserCreateOptions struct {
	ID           string
	Username     string
	FullName     string
	Role         string
	DepartmentID string
}

var departmentBoundRoles = map[string]bool{
	domain.RoleCXOSecretary: true,
	domain.RoleCXO:          true,
}

func (e Engine) CreateUser(ctx context.Context, actor access.Actor, opts UserCreateOptions) (domain.User, error) {
	if !access.CanManageUsers(actor.Role) {
		return domain.User{}, access.PermissionError{Capability: "user.manage"}
	}
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Username == "" {
		return domain.User{}, ValidationError{Field: "username", Reason: "required"}
	}
	switch opts.Role {
	case domain.RoleSuperAdmin, domain.RoleCEOSecretary, domain.RoleCXOSecretary, domain.RoleCEO, domain.RoleCXO:
	default:
		return domain.User{}, ValidationError{Field: "role", Reason: "unknown role " + opts.Role}
	}
	if departmentBoundRoles[opts.Role] && opts.DepartmentID == "" {
		return domain.User{}, ValidationError{Field: "department_id", Reason: "required for role " + opts.Role}
	}
	if opts.DepartmentID != "" {
		if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
			if err == repo.ErrNotFound {
				return domain.User{}, ValidationError{Field: "department_id", Reason: "unknown department " + opts.DepartmentID}
			}
			return domain.User{}, err
		}
	}
	if _, err := e.Repo.GetUserByUsername(ctx, opts.Username); err == nil {
		return domain.User{}, ConflictError{Reason: "username " + opts.Username + " already exists"}
	} else if err != repo.ErrNotFound {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           opts.ID,
		Username:     opts.Username,
		FullName:     opts.FullName,
		Role:         opts.Role,
		DepartmentID: optionalString(opts.DepartmentID),
		CreatedAt:    e.stamp(),
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := e.Repo.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// IssueAPIKey mints a key for a user and stores only its hash. The plaintext
// is returned once and cannot be recovered.
func (e Engine) IssueAPIKey(ctx context.Context, actor access.Actor, userID, name string) (domain.APIKey, string, error) {
	if !access.CanManageUsers(actor.Role) && actor.ID != userID {
		return domain.APIKey{}, "", access.PermissionError{Capability: "apikey.manage"}
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return domain.APIKey{}, "", err
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	plaintext := "dlk_" + hex.EncodeToString(raw)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}
