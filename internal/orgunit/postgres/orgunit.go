package postgres

import (
	"context"
	"errors"

	appErrors "github.com/frahmantamala/research-hours/internal"
	orgDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/orgunit"
	userDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/user"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	"gorm.io/gorm"
)

type OrgUnitRepository struct {
	db *gorm.DB
}

func NewOrgUnitRepository(db *gorm.DB) orgunit.RepositoryAPI {
	return &OrgUnitRepository{db: db}
}

// GetUserAssignment derives the faculty from the department row so a stale
// org_unit_id on the user never reroutes department staff.
func (r *OrgUnitRepository) GetUserAssignment(ctx context.Context, userID int64) (*orgunit.Assignment, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, err
	}

	assignment := &orgunit.Assignment{UserID: u.ID}
	if u.DepartmentID != nil {
		var dept orgDatamodel.Department
		if err := r.db.WithContext(ctx).Where("id = ?", *u.DepartmentID).First(&dept).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return assignment, nil
			}
			return nil, err
		}
		deptID, facultyID := dept.ID, dept.FacultyID
		assignment.DepartmentID = &deptID
		assignment.FacultyID = &facultyID
		return assignment, nil
	}

	if u.OrgUnitID != nil {
		var unit orgDatamodel.OrgUnit
		err := r.db.WithContext(ctx).
			Where("id = ? AND kind = ?", *u.OrgUnitID, string(orgunit.KindOffice)).
			First(&unit).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return assignment, nil
			}
			return nil, err
		}
		officeID := unit.ID
		assignment.OfficeID = &officeID
	}
	return assignment, nil
}

func (r *OrgUnitRepository) SetUserAssignment(ctx context.Context, userID int64, departmentID, orgUnitID *int64) error {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"department_id": departmentID,
			"org_unit_id":   orgUnitID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appErrors.ErrUserNotFound
	}
	return nil
}

func (r *OrgUnitRepository) GetOrgUnit(ctx context.Context, id int64) (*orgunit.OrgUnit, error) {
	var unit orgDatamodel.OrgUnit
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrOrgUnitNotFound
		}
		return nil, err
	}
	return orgunit.FromDataModel(&unit), nil
}

func (r *OrgUnitRepository) ListOrgUnits(ctx context.Context) ([]*orgunit.OrgUnit, error) {
	var units []*orgDatamodel.OrgUnit
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return orgunit.FromDataModelSlice(units), nil
}

func (r *OrgUnitRepository) CreateOrgUnit(ctx context.Context, unit *orgunit.OrgUnit) error {
	data := orgunit.ToDataModel(unit)
	if err := r.db.WithContext(ctx).Create(data).Error; err != nil {
		return err
	}
	unit.ID = data.ID
	unit.CreatedAt = data.CreatedAt
	return nil
}

func (r *OrgUnitRepository) GetDepartment(ctx context.Context, id int64) (*orgunit.Department, error) {
	var dept orgDatamodel.Department
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dept).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrDepartmentNotFound
		}
		return nil, err
	}
	return orgunit.DepartmentFromDataModel(&dept), nil
}

func (r *OrgUnitRepository) ListDepartments(ctx context.Context, facultyID int64) ([]*orgunit.Department, error) {
	var rows []*orgDatamodel.Department
	err := r.db.WithContext(ctx).
		Where("faculty_id = ? AND is_active = ?", facultyID, true).
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	depts := make([]*orgunit.Department, len(rows))
	for i, d := range rows {
		depts[i] = orgunit.DepartmentFromDataModel(d)
	}
	return depts, nil
}

func (r *OrgUnitRepository) CreateDepartment(ctx context.Context, dept *orgunit.Department) error {
	data := orgunit.DepartmentToDataModel(dept)
	if err := r.db.WithContext(ctx).Create(data).Error; err != nil {
		return err
	}
	dept.ID = data.ID
	dept.CreatedAt = data.CreatedAt
	return nil
}

func (r *OrgUnitRepository) CreateRole(ctx context.Context, role *identity.AdminRole) error {
	data := identity.RoleToDataModel(role)
	if err := r.db.WithContext(ctx).Create(data).Error; err != nil {
		return err
	}
	role.ID = data.ID
	role.CreatedAt = data.CreatedAt
	return nil
}

func (r *OrgUnitRepository) ListRoles(ctx context.Context, userID int64) ([]identity.AdminRole, error) {
	var rows []*orgDatamodel.AdminRole
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return identity.RolesFromDataModel(rows), nil
}
