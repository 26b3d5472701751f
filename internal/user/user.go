package user

import (
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	userDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/user"
	"github.com/frahmantamala/research-hours/internal/core/identity"
)

type User struct {
	ID           int64                `json:"id"`
	Email        string               `json:"email"`
	Name         string               `json:"name"`
	PasswordHash string               `json:"-"` // Never expose password hash
	DepartmentID *int64               `json:"department_id,omitempty"`
	OrgUnitID    *int64               `json:"org_unit_id,omitempty"`
	IsActive     bool                 `json:"is_active"`
	Roles        []identity.AdminRole `json:"roles,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (u *User) Actor() identity.Actor {
	return identity.Actor{UserID: u.ID, Email: u.Email, Roles: u.Roles}
}

// IsReviewer reports whether the user holds any active admin role.
func (u *User) IsReviewer() bool {
	a := u.Actor()
	return a.HasScope(identity.ScopeUniversity) || a.HasScope(identity.ScopeFaculty) || a.HasScope(identity.ScopeDepartment)
}

func (u *User) IsUniversityAdmin() bool {
	return u.Actor().IsUniversityAdmin()
}

// IsAssigned is false for users who cannot submit records yet.
func (u *User) IsAssigned() bool {
	return u.DepartmentID != nil || u.OrgUnitID != nil
}

var ErrEmailTaken = errors.NewConflictError("email is already registered", errors.ErrCodeValidationFailed)

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		DepartmentID: u.DepartmentID,
		OrgUnitID:    u.OrgUnitID,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		DepartmentID: u.DepartmentID,
		OrgUnitID:    u.OrgUnitID,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Roles:        []identity.AdminRole{},
	}
}

func FromDataModelWithRoles(u *userDatamodel.User, roles []identity.AdminRole) *User {
	domainUser := FromDataModel(u)
	domainUser.Roles = roles
	return domainUser
}
