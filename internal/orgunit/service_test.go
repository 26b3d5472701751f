package orgunit_test

import (
	"context"
	"log/slog"
	"os"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockRepository implements orgunit.RepositoryAPI for testing
type MockRepository struct {
	units       map[int64]*orgunit.OrgUnit
	depts       map[int64]*orgunit.Department
	assignments map[int64]*orgunit.Assignment
	roles       []identity.AdminRole
	nextID      int64
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		units:       make(map[int64]*orgunit.OrgUnit),
		depts:       make(map[int64]*orgunit.Department),
		assignments: make(map[int64]*orgunit.Assignment),
		nextID:      100,
	}
}

func (m *MockRepository) GetUserAssignment(_ context.Context, userID int64) (*orgunit.Assignment, error) {
	a, ok := m.assignments[userID]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return a, nil
}

func (m *MockRepository) SetUserAssignment(_ context.Context, userID int64, departmentID, orgUnitID *int64) error {
	a := &orgunit.Assignment{UserID: userID, DepartmentID: departmentID}
	if departmentID != nil {
		a.FacultyID = orgUnitID
	} else {
		a.OfficeID = orgUnitID
	}
	m.assignments[userID] = a
	return nil
}

func (m *MockRepository) GetOrgUnit(_ context.Context, id int64) (*orgunit.OrgUnit, error) {
	u, ok := m.units[id]
	if !ok {
		return nil, errors.ErrOrgUnitNotFound
	}
	return u, nil
}

func (m *MockRepository) ListOrgUnits(_ context.Context) ([]*orgunit.OrgUnit, error) {
	var out []*orgunit.OrgUnit
	for _, u := range m.units {
		out = append(out, u)
	}
	return out, nil
}

func (m *MockRepository) CreateOrgUnit(_ context.Context, unit *orgunit.OrgUnit) error {
	m.nextID++
	unit.ID = m.nextID
	m.units[unit.ID] = unit
	return nil
}

func (m *MockRepository) GetDepartment(_ context.Context, id int64) (*orgunit.Department, error) {
	d, ok := m.depts[id]
	if !ok {
		return nil, errors.ErrDepartmentNotFound
	}
	return d, nil
}

func (m *MockRepository) ListDepartments(_ context.Context, facultyID int64) ([]*orgunit.Department, error) {
	var out []*orgunit.Department
	for _, d := range m.depts {
		if d.FacultyID == facultyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockRepository) CreateDepartment(_ context.Context, dept *orgunit.Department) error {
	m.nextID++
	dept.ID = m.nextID
	m.depts[dept.ID] = dept
	return nil
}

func (m *MockRepository) CreateRole(_ context.Context, role *identity.AdminRole) error {
	m.nextID++
	role.ID = m.nextID
	m.roles = append(m.roles, *role)
	return nil
}

func (m *MockRepository) ListRoles(_ context.Context, userID int64) ([]identity.AdminRole, error) {
	var out []identity.AdminRole
	for _, r := range m.roles {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

var _ = Describe("OrgUnit Service", func() {
	var (
		ctx      context.Context
		mockRepo *MockRepository
		service  *orgunit.Service
		faculty  *orgunit.OrgUnit
		office   *orgunit.OrgUnit
		dept     *orgunit.Department
	)

	universityAdmin := identity.Actor{UserID: 1, Roles: []identity.AdminRole{
		{UserID: 1, ScopeKind: identity.ScopeUniversity, IsActive: true},
	}}

	BeforeEach(func() {
		ctx = context.Background()
		mockRepo = NewMockRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = orgunit.NewService(mockRepo, logger)

		var err error
		faculty, err = service.CreateOrgUnit(ctx, orgunit.CreateOrgUnitDTO{Name: "Faculty of Science", Kind: "faculty"})
		Expect(err).NotTo(HaveOccurred())
		office, err = service.CreateOrgUnit(ctx, orgunit.CreateOrgUnitDTO{Name: "Research Office", Kind: "office"})
		Expect(err).NotTo(HaveOccurred())
		dept, err = service.CreateDepartment(ctx, faculty.ID, orgunit.CreateDepartmentDTO{Name: "Physics"})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("CreateDepartment", func() {
		It("should refuse departments under an office", func() {
			_, err := service.CreateDepartment(ctx, office.ID, orgunit.CreateDepartmentDTO{Name: "Nope"})
			Expect(err).To(MatchError(orgunit.ErrOfficeHasNoDepts))
		})

		It("should fail for an unknown parent", func() {
			_, err := service.CreateDepartment(ctx, 9999, orgunit.CreateDepartmentDTO{Name: "Ghost"})
			Expect(err).To(MatchError(errors.ErrOrgUnitNotFound))
		})
	})

	Describe("CreateOrgUnit", func() {
		It("should reject unknown kinds", func() {
			_, err := service.CreateOrgUnit(ctx, orgunit.CreateOrgUnitDTO{Name: "Lab", Kind: "lab"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AssignUser and ResolvePath", func() {
		It("should route department staff through three stages", func() {
			// Given
			_, err := service.AssignUser(ctx, 42, orgunit.AssignUserDTO{DepartmentID: &dept.ID})
			Expect(err).NotTo(HaveOccurred())

			// When
			path, err := service.ResolvePath(ctx, 42)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(orgunit.ThreeStagePath{DepartmentID: dept.ID, FacultyID: faculty.ID}))
		})

		It("should route office staff through university review only", func() {
			_, err := service.AssignUser(ctx, 43, orgunit.AssignUserDTO{OfficeID: &office.ID})
			Expect(err).NotTo(HaveOccurred())

			path, err := service.ResolvePath(ctx, 43)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(orgunit.OneStagePath{OfficeID: office.ID}))
		})

		It("should refuse assigning to a faculty as if it were an office", func() {
			_, err := service.AssignUser(ctx, 44, orgunit.AssignUserDTO{OfficeID: &faculty.ID})
			Expect(err).To(MatchError(orgunit.ErrAssignmentNotOffice))
		})

		It("should refuse ambiguous assignments", func() {
			_, err := service.AssignUser(ctx, 45, orgunit.AssignUserDTO{DepartmentID: &dept.ID, OfficeID: &office.ID})
			Expect(err).To(MatchError(orgunit.ErrAmbiguousAssignment))
		})

		It("should report a configuration error for unassigned users", func() {
			mockRepo.assignments[46] = &orgunit.Assignment{UserID: 46}

			_, err := service.ResolvePath(ctx, 46)
			Expect(errors.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Describe("GrantRole", func() {
		It("should let a university admin grant a faculty role", func() {
			role, err := service.GrantRole(ctx, universityAdmin, 50, orgunit.GrantRoleDTO{ScopeKind: "faculty", ScopeID: &faculty.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(role.ScopeKind).To(Equal(identity.ScopeFaculty))
			Expect(*role.GrantedBy).To(Equal(universityAdmin.UserID))
		})

		It("should let a faculty admin grant department roles inside their faculty", func() {
			facultyAdmin := identity.Actor{UserID: 2, Roles: []identity.AdminRole{
				{UserID: 2, ScopeKind: identity.ScopeFaculty, ScopeID: &faculty.ID, IsActive: true},
			}}

			_, err := service.GrantRole(ctx, facultyAdmin, 51, orgunit.GrantRoleDTO{ScopeKind: "department", ScopeID: &dept.ID})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should stop a faculty admin granting outside their faculty", func() {
			other, err := service.CreateOrgUnit(ctx, orgunit.CreateOrgUnitDTO{Name: "Faculty of Law", Kind: "faculty"})
			Expect(err).NotTo(HaveOccurred())
			facultyAdmin := identity.Actor{UserID: 3, Roles: []identity.AdminRole{
				{UserID: 3, ScopeKind: identity.ScopeFaculty, ScopeID: &other.ID, IsActive: true},
			}}

			_, err = service.GrantRole(ctx, facultyAdmin, 52, orgunit.GrantRoleDTO{ScopeKind: "department", ScopeID: &dept.ID})
			Expect(err).To(MatchError(orgunit.ErrDepartmentNotInScope))
		})

		It("should stop a faculty admin granting university roles", func() {
			facultyAdmin := identity.Actor{UserID: 4, Roles: []identity.AdminRole{
				{UserID: 4, ScopeKind: identity.ScopeFaculty, ScopeID: &faculty.ID, IsActive: true},
			}}

			_, err := service.GrantRole(ctx, facultyAdmin, 53, orgunit.GrantRoleDTO{ScopeKind: "university"})
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())
		})

		It("should reject a university role carrying a scope id", func() {
			_, err := service.GrantRole(ctx, universityAdmin, 54, orgunit.GrantRoleDTO{ScopeKind: "university", ScopeID: &faculty.ID})
			Expect(err).To(MatchError(orgunit.ErrInvalidRoleScope))
		})

		It("should reject a faculty role pointing at an office", func() {
			_, err := service.GrantRole(ctx, universityAdmin, 55, orgunit.GrantRoleDTO{ScopeKind: "faculty", ScopeID: &office.ID})
			Expect(err).To(MatchError(orgunit.ErrInvalidRoleScope))
		})
	})
})
