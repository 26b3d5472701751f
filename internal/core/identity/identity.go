package identity

import (
	"time"

	orgDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/orgunit"
)

type ScopeKind string

const (
	ScopeUniversity ScopeKind = "university"
	ScopeFaculty    ScopeKind = "faculty"
	ScopeDepartment ScopeKind = "department"
)

func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeUniversity, ScopeFaculty, ScopeDepartment:
		return true
	}
	return false
}

// AdminRole grants review authority. University roles are global and carry
// no scope id; faculty and department roles name the unit they cover.
type AdminRole struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ScopeKind ScopeKind `json:"scope_kind"`
	ScopeID   *int64    `json:"scope_id,omitempty"`
	GrantedBy *int64    `json:"granted_by,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// WellFormed checks the scope id against the scope kind.
func (r AdminRole) WellFormed() bool {
	switch r.ScopeKind {
	case ScopeUniversity:
		return r.ScopeID == nil
	case ScopeFaculty, ScopeDepartment:
		return r.ScopeID != nil && *r.ScopeID > 0
	}
	return false
}

// Actor is the authenticated caller of a state-changing operation. It is
// passed explicitly; nothing reads it from ambient state.
type Actor struct {
	UserID int64       `json:"user_id"`
	Email  string      `json:"email,omitempty"`
	Roles  []AdminRole `json:"roles,omitempty"`
}

func (a Actor) HasScope(kind ScopeKind) bool {
	for _, r := range a.Roles {
		if r.IsActive && r.ScopeKind == kind {
			return true
		}
	}
	return false
}

func (a Actor) IsUniversityAdmin() bool {
	return a.HasScope(ScopeUniversity)
}

// ScopeIDs lists the unit ids covered by active roles of the given kind.
func (a Actor) ScopeIDs(kind ScopeKind) []int64 {
	var ids []int64
	for _, r := range a.Roles {
		if r.IsActive && r.ScopeKind == kind && r.ScopeID != nil {
			ids = append(ids, *r.ScopeID)
		}
	}
	return ids
}

func RoleToDataModel(r *AdminRole) *orgDatamodel.AdminRole {
	return &orgDatamodel.AdminRole{
		ID:        r.ID,
		UserID:    r.UserID,
		ScopeKind: string(r.ScopeKind),
		ScopeID:   r.ScopeID,
		GrantedBy: r.GrantedBy,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}

func RoleFromDataModel(r *orgDatamodel.AdminRole) AdminRole {
	return AdminRole{
		ID:        r.ID,
		UserID:    r.UserID,
		ScopeKind: ScopeKind(r.ScopeKind),
		ScopeID:   r.ScopeID,
		GrantedBy: r.GrantedBy,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}

func RolesFromDataModel(rows []*orgDatamodel.AdminRole) []AdminRole {
	roles := make([]AdminRole, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, RoleFromDataModel(r))
	}
	return roles
}
