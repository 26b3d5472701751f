package orgunit

import (
	"strings"

	"github.com/frahmantamala/research-hours/internal/core/common/validation"
	"github.com/frahmantamala/research-hours/internal/core/identity"
)

type CreateOrgUnitDTO struct {
	Name string `json:"name" validate:"required,max=150"`
	Code string `json:"code" validate:"max=20"`
	Kind string `json:"kind" validate:"required,oneof=faculty office"`
}

func (dto CreateOrgUnitDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	return nil
}

type CreateDepartmentDTO struct {
	Name string `json:"name" validate:"required,max=150"`
	Code string `json:"code" validate:"max=20"`
}

func (dto CreateDepartmentDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	return nil
}

// AssignUserDTO places a user in exactly one of a department or an office.
type AssignUserDTO struct {
	DepartmentID *int64 `json:"department_id" validate:"omitempty,gt=0"`
	OfficeID     *int64 `json:"office_id" validate:"omitempty,gt=0"`
}

func (dto AssignUserDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	if (dto.DepartmentID == nil) == (dto.OfficeID == nil) {
		return ErrAmbiguousAssignment
	}
	return nil
}

type GrantRoleDTO struct {
	ScopeKind string `json:"scope_kind" validate:"required,oneof=university faculty department"`
	ScopeID   *int64 `json:"scope_id" validate:"omitempty,gt=0"`
}

func (dto GrantRoleDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	role := identity.AdminRole{ScopeKind: identity.ScopeKind(strings.ToLower(dto.ScopeKind)), ScopeID: dto.ScopeID}
	if !role.WellFormed() {
		return ErrInvalidRoleScope
	}
	return nil
}

type OrgUnitsResponse struct {
	OrgUnits []*OrgUnit `json:"org_units"`
}
