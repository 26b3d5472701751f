package orgunit

import (
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	orgDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/orgunit"
)

type Kind string

const (
	KindFaculty Kind = "faculty"
	KindOffice  Kind = "office"
)

func (k Kind) Valid() bool {
	return k == KindFaculty || k == KindOffice
}

// OrgUnit is a top-level unit. Only faculties own departments.
type OrgUnit struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	Kind      Kind      `json:"kind"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *OrgUnit) CanOwnDepartments() bool {
	return u.Kind == KindFaculty
}

type Department struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	FacultyID int64     `json:"faculty_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignment is where a user sits in the hierarchy: a department (and so
// its faculty) or an office directly.
type Assignment struct {
	UserID       int64  `json:"user_id"`
	DepartmentID *int64 `json:"department_id,omitempty"`
	FacultyID    *int64 `json:"faculty_id,omitempty"`
	OfficeID     *int64 `json:"office_id,omitempty"`
}

func (a Assignment) InDepartment() bool {
	return a.DepartmentID != nil && a.FacultyID != nil
}

func (a Assignment) InOffice() bool {
	return a.DepartmentID == nil && a.OfficeID != nil
}

// UnitID is the top-level org unit: the faculty for department staff, the
// office otherwise.
func (a Assignment) UnitID() (int64, bool) {
	switch {
	case a.InDepartment():
		return *a.FacultyID, true
	case a.InOffice():
		return *a.OfficeID, true
	}
	return 0, false
}

var (
	ErrInvalidKind          = errors.NewValidationFieldError("kind", "kind must be one of [faculty office]", errors.ErrCodeInvalidOrgStructure)
	ErrOfficeHasNoDepts     = errors.NewConfigurationError("offices cannot own departments", errors.ErrCodeInvalidOrgStructure)
	ErrAmbiguousAssignment  = errors.NewValidationError("assign exactly one of department_id or office_id", errors.ErrCodeInvalidOrgStructure)
	ErrAssignmentNotOffice  = errors.NewValidationError("office_id must reference an office", errors.ErrCodeInvalidOrgStructure)
	ErrInvalidRoleScope     = errors.NewValidationError("role scope is inconsistent with its scope kind", errors.ErrCodeInvalidRoleScope)
	ErrDepartmentNotInScope = errors.NewForbiddenError("department is not owned by the granting faculty", errors.ErrCodeInvalidRoleScope)
)

func ToDataModel(u *OrgUnit) *orgDatamodel.OrgUnit {
	return &orgDatamodel.OrgUnit{
		ID:        u.ID,
		Name:      u.Name,
		Code:      u.Code,
		Kind:      string(u.Kind),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func FromDataModel(u *orgDatamodel.OrgUnit) *OrgUnit {
	return &OrgUnit{
		ID:        u.ID,
		Name:      u.Name,
		Code:      u.Code,
		Kind:      Kind(u.Kind),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func FromDataModelSlice(units []*orgDatamodel.OrgUnit) []*OrgUnit {
	result := make([]*OrgUnit, len(units))
	for i, u := range units {
		result[i] = FromDataModel(u)
	}
	return result
}

func DepartmentToDataModel(d *Department) *orgDatamodel.Department {
	return &orgDatamodel.Department{
		ID:        d.ID,
		Name:      d.Name,
		Code:      d.Code,
		FacultyID: d.FacultyID,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
	}
}

func DepartmentFromDataModel(d *orgDatamodel.Department) *Department {
	return &Department{
		ID:        d.ID,
		Name:      d.Name,
		Code:      d.Code,
		FacultyID: d.FacultyID,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
	}
}
