package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/hours"
)

type ScopeKind string

const (
	ScopeUniversity ScopeKind = "university"
	ScopeFaculty    ScopeKind = "faculty"
	ScopeDepartment ScopeKind = "department"
	ScopeUser       ScopeKind = "user"
)

// Scope narrows a report to the whole university, one faculty, one
// department or one user. ID is ignored for university scope.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	ID   int64     `json:"id,omitempty"`
}

func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeUniversity:
		return nil
	case ScopeFaculty, ScopeDepartment, ScopeUser:
		if s.ID <= 0 {
			return errors.NewValidationFieldError("scope_id", fmt.Sprintf("scope_id is required for %s scope", s.Kind), errors.ErrCodeValidationFailed)
		}
		return nil
	default:
		return errors.NewValidationFieldError("scope", fmt.Sprintf("unknown scope %q", s.Kind), errors.ErrCodeValidationFailed)
	}
}

func (s Scope) Key(year int) string {
	if s.Kind == ScopeUniversity {
		return fmt.Sprintf("%s:%d", s.Kind, year)
	}
	return fmt.Sprintf("%s:%d:%d", s.Kind, s.ID, year)
}

// Row is one approved record as read for aggregation. OrgUnitID is the
// owner's faculty for department staff and the office otherwise.
type Row struct {
	RecordID     int64    `db:"record_id"`
	OwnerID      int64    `db:"owner_id"`
	OwnerName    string   `db:"owner_name"`
	DepartmentID *int64   `db:"department_id"`
	OrgUnitID    *int64   `db:"org_unit_id"`
	Kind         string   `db:"kind"`
	Hours        *float64 `db:"hours"`
	AnnualHours  *float64 `db:"annual_hours"`
}

// Value is the computed hours the record contributes to its approval year.
// AnnualHours is informational only.
func (r Row) Value() float64 {
	if r.Hours != nil {
		return *r.Hours
	}
	return 0
}

type KindTotals map[hours.Kind]float64

type UserTotal struct {
	UserID       int64      `json:"user_id"`
	Name         string     `json:"name"`
	DepartmentID *int64     `json:"department_id,omitempty"`
	OrgUnitID    *int64     `json:"org_unit_id,omitempty"`
	Records      int        `json:"records"`
	ByKind       KindTotals `json:"by_kind"`
	// ActivityUncapped is the activity sum before the yearly cap.
	ActivityUncapped float64 `json:"activity_uncapped"`
	Total            float64 `json:"total"`
}

type UnitTotal struct {
	UnitID int64      `json:"unit_id"`
	Users  int        `json:"users"`
	ByKind KindTotals `json:"by_kind"`
	Total  float64    `json:"total"`
}

type Report struct {
	Scope       Scope       `json:"scope"`
	Year        int         `json:"year"`
	RuleVersion string      `json:"rule_version"`
	ActivityCap float64     `json:"activity_cap"`
	GeneratedAt time.Time   `json:"generated_at"`
	Users       []UserTotal `json:"users"`
	OrgUnits    []UnitTotal `json:"org_units"`
	Departments []UnitTotal `json:"departments"`
	ByKind      KindTotals  `json:"by_kind"`
	Total       float64     `json:"total"`
}

type RepositoryAPI interface {
	ApprovedRows(ctx context.Context, scope Scope, year int) ([]Row, error)
}

// Build folds approved rows into a report. The activity cap comes from
// table and applies per user after summing.
func Build(scope Scope, year int, table *hours.RuleTable, rows []Row) *Report {
	users := make(map[int64]*UserTotal)
	order := make([]int64, 0)

	for _, row := range rows {
		u, ok := users[row.OwnerID]
		if !ok {
			u = &UserTotal{
				UserID:       row.OwnerID,
				Name:         row.OwnerName,
				DepartmentID: row.DepartmentID,
				OrgUnitID:    row.OrgUnitID,
				ByKind:       KindTotals{},
			}
			users[row.OwnerID] = u
			order = append(order, row.OwnerID)
		}
		u.Records++
		u.ByKind[hours.Kind(row.Kind)] += row.Value()
	}

	rep := &Report{
		Scope:       scope,
		Year:        year,
		RuleVersion: table.Version,
		ActivityCap: table.Activities.YearlyCap,
		GeneratedAt: time.Now().UTC(),
		Users:       make([]UserTotal, 0, len(order)),
		ByKind:      KindTotals{},
	}

	orgUnits := make(map[int64]*UnitTotal)
	departments := make(map[int64]*UnitTotal)

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, id := range order {
		u := users[id]
		if activity, ok := u.ByKind[hours.KindActivity]; ok {
			u.ActivityUncapped = round2(activity)
			u.ByKind[hours.KindActivity] = hours.CapActivities(table, activity)
		}
		for kind, v := range u.ByKind {
			u.ByKind[kind] = round2(v)
			u.Total += v
		}
		u.Total = round2(u.Total)

		rep.Users = append(rep.Users, *u)
		rep.ByKind.add(u.ByKind)
		rep.Total += u.Total

		if u.OrgUnitID != nil {
			unitTotal(orgUnits, *u.OrgUnitID).add(u)
		}
		if u.DepartmentID != nil {
			unitTotal(departments, *u.DepartmentID).add(u)
		}
	}

	rep.Total = round2(rep.Total)
	rep.ByKind.round()
	rep.OrgUnits = sortedUnits(orgUnits)
	rep.Departments = sortedUnits(departments)
	return rep
}

func (t KindTotals) add(other KindTotals) {
	for k, v := range other {
		t[k] += v
	}
}

func (t KindTotals) round() {
	for k, v := range t {
		t[k] = round2(v)
	}
}

func (u *UnitTotal) add(user *UserTotal) {
	u.Users++
	u.ByKind.add(user.ByKind)
	u.Total += user.Total
}

func unitTotal(m map[int64]*UnitTotal, id int64) *UnitTotal {
	u, ok := m[id]
	if !ok {
		u = &UnitTotal{UnitID: id, ByKind: KindTotals{}}
		m[id] = u
	}
	return u
}

func sortedUnits(m map[int64]*UnitTotal) []UnitTotal {
	out := make([]UnitTotal, 0, len(m))
	for _, u := range m {
		u.Total = round2(u.Total)
		u.ByKind.round()
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
