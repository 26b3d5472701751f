package orgunit

import (
	"context"
	"log/slog"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/identity"
)

type RepositoryAPI interface {
	GetUserAssignment(ctx context.Context, userID int64) (*Assignment, error)
	SetUserAssignment(ctx context.Context, userID int64, departmentID, orgUnitID *int64) error
	GetOrgUnit(ctx context.Context, id int64) (*OrgUnit, error)
	ListOrgUnits(ctx context.Context) ([]*OrgUnit, error)
	CreateOrgUnit(ctx context.Context, unit *OrgUnit) error
	GetDepartment(ctx context.Context, id int64) (*Department, error)
	ListDepartments(ctx context.Context, facultyID int64) ([]*Department, error)
	CreateDepartment(ctx context.Context, dept *Department) error
	CreateRole(ctx context.Context, role *identity.AdminRole) error
	ListRoles(ctx context.Context, userID int64) ([]identity.AdminRole, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ResolvePath returns the review path for records owned by userID.
func (s *Service) ResolvePath(ctx context.Context, userID int64) (Path, error) {
	assignment, err := s.Assignment(ctx, userID)
	if err != nil {
		return nil, err
	}
	return PathFor(assignment)
}

// Assignment loads the user's org placement. A user with neither a
// department nor an office yields a configuration error.
func (s *Service) Assignment(ctx context.Context, userID int64) (*Assignment, error) {
	assignment, err := s.repo.GetUserAssignment(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user assignment", "error", err, "user_id", userID)
		return nil, err
	}
	if !assignment.InDepartment() && !assignment.InOffice() {
		s.logger.Warn("user has no org assignment", "user_id", userID)
		return nil, errors.ErrMissingOrgAssignment.WithMessage("user has no department or office assignment; an administrator must assign one before records can be routed")
	}
	return assignment, nil
}

func (s *Service) ListOrgUnits(ctx context.Context) ([]*OrgUnit, error) {
	units, err := s.repo.ListOrgUnits(ctx)
	if err != nil {
		s.logger.Error("failed to list org units", "error", err)
		return nil, err
	}
	return units, nil
}

func (s *Service) ListDepartments(ctx context.Context, facultyID int64) ([]*Department, error) {
	if _, err := s.repo.GetOrgUnit(ctx, facultyID); err != nil {
		return nil, err
	}
	return s.repo.ListDepartments(ctx, facultyID)
}

func (s *Service) Department(ctx context.Context, id int64) (*Department, error) {
	return s.repo.GetDepartment(ctx, id)
}

func (s *Service) CreateOrgUnit(ctx context.Context, dto CreateOrgUnitDTO) (*OrgUnit, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	unit := &OrgUnit{
		Name:     dto.Name,
		Code:     dto.Code,
		Kind:     Kind(dto.Kind),
		IsActive: true,
	}
	if !unit.Kind.Valid() {
		return nil, ErrInvalidKind
	}

	if err := s.repo.CreateOrgUnit(ctx, unit); err != nil {
		s.logger.Error("failed to create org unit", "error", err, "name", dto.Name)
		return nil, err
	}

	s.logger.Info("org unit created", "org_unit_id", unit.ID, "kind", unit.Kind)
	return unit, nil
}

// CreateDepartment adds a department under a faculty. Offices never own
// departments.
func (s *Service) CreateDepartment(ctx context.Context, facultyID int64, dto CreateDepartmentDTO) (*Department, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	parent, err := s.repo.GetOrgUnit(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	if !parent.CanOwnDepartments() {
		s.logger.Warn("department creation rejected: parent is not a faculty", "org_unit_id", facultyID, "kind", parent.Kind)
		return nil, ErrOfficeHasNoDepts
	}

	dept := &Department{
		Name:      dto.Name,
		Code:      dto.Code,
		FacultyID: facultyID,
		IsActive:  true,
	}
	if err := s.repo.CreateDepartment(ctx, dept); err != nil {
		s.logger.Error("failed to create department", "error", err, "faculty_id", facultyID)
		return nil, err
	}

	s.logger.Info("department created", "department_id", dept.ID, "faculty_id", facultyID)
	return dept, nil
}

func (s *Service) AssignUser(ctx context.Context, userID int64, dto AssignUserDTO) (*Assignment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if dto.DepartmentID != nil {
		dept, err := s.repo.GetDepartment(ctx, *dto.DepartmentID)
		if err != nil {
			return nil, err
		}
		facultyID := dept.FacultyID
		if err := s.repo.SetUserAssignment(ctx, userID, &dept.ID, &facultyID); err != nil {
			s.logger.Error("failed to assign user to department", "error", err, "user_id", userID)
			return nil, err
		}
		s.logger.Info("user assigned to department", "user_id", userID, "department_id", dept.ID)
		return &Assignment{UserID: userID, DepartmentID: &dept.ID, FacultyID: &facultyID}, nil
	}

	office, err := s.repo.GetOrgUnit(ctx, *dto.OfficeID)
	if err != nil {
		return nil, err
	}
	if office.Kind != KindOffice {
		return nil, ErrAssignmentNotOffice
	}
	if err := s.repo.SetUserAssignment(ctx, userID, nil, &office.ID); err != nil {
		s.logger.Error("failed to assign user to office", "error", err, "user_id", userID)
		return nil, err
	}
	s.logger.Info("user assigned to office", "user_id", userID, "office_id", office.ID)
	return &Assignment{UserID: userID, OfficeID: &office.ID}, nil
}

// GrantRole records a new admin role. University admins may grant any
// scope; faculty admins may only grant department roles for departments
// their faculty owns.
func (s *Service) GrantRole(ctx context.Context, grantor identity.Actor, userID int64, dto GrantRoleDTO) (*identity.AdminRole, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	role := &identity.AdminRole{
		UserID:    userID,
		ScopeKind: identity.ScopeKind(dto.ScopeKind),
		ScopeID:   dto.ScopeID,
		GrantedBy: &grantor.UserID,
		IsActive:  true,
	}

	switch role.ScopeKind {
	case identity.ScopeUniversity:
		if !grantor.IsUniversityAdmin() {
			return nil, errors.ErrNotAuthorized.WithMessage("only university administrators may grant university roles")
		}
	case identity.ScopeFaculty:
		unit, err := s.repo.GetOrgUnit(ctx, *role.ScopeID)
		if err != nil {
			return nil, err
		}
		if unit.Kind != KindFaculty {
			return nil, ErrInvalidRoleScope.WithMessage("faculty roles must reference a faculty")
		}
		if !grantor.IsUniversityAdmin() {
			return nil, errors.ErrNotAuthorized.WithMessage("only university administrators may grant faculty roles")
		}
	case identity.ScopeDepartment:
		dept, err := s.repo.GetDepartment(ctx, *role.ScopeID)
		if err != nil {
			return nil, err
		}
		if !grantor.IsUniversityAdmin() && !containsID(grantor.ScopeIDs(identity.ScopeFaculty), dept.FacultyID) {
			s.logger.Warn("role grant rejected: department outside grantor faculty",
				"grantor_id", grantor.UserID,
				"department_id", dept.ID,
				"faculty_id", dept.FacultyID)
			return nil, ErrDepartmentNotInScope
		}
	}

	if err := s.repo.CreateRole(ctx, role); err != nil {
		s.logger.Error("failed to create admin role", "error", err, "user_id", userID)
		return nil, err
	}

	s.logger.Info("admin role granted",
		"role_id", role.ID,
		"user_id", userID,
		"scope_kind", role.ScopeKind,
		"grantor_id", grantor.UserID)

	return role, nil
}

func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]identity.AdminRole, error) {
	return s.repo.ListRoles(ctx, userID)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
