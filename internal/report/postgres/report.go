package postgres

import (
	"context"
	"strings"

	"github.com/frahmantamala/research-hours/internal/report"
	"github.com/jmoiron/sqlx"
)

// ReportRepository reads approved hours with plain SQL through sqlx; the
// aggregation itself happens in memory.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) report.RepositoryAPI {
	return &ReportRepository{db: db}
}

const approvedRowsQuery = `
SELECT r.id AS record_id,
       r.owner_id,
       u.name AS owner_name,
       u.department_id,
       COALESCE(d.faculty_id, u.org_unit_id) AS org_unit_id,
       r.kind,
       r.hours,
       r.annual_hours
FROM records r
JOIN users u ON u.id = r.owner_id
LEFT JOIN departments d ON d.id = u.department_id
WHERE r.status = 'approved' AND r.approval_year = ?`

func (r *ReportRepository) ApprovedRows(ctx context.Context, scope report.Scope, year int) ([]report.Row, error) {
	var sb strings.Builder
	sb.WriteString(approvedRowsQuery)
	args := []interface{}{year}

	switch scope.Kind {
	case report.ScopeFaculty:
		sb.WriteString(" AND d.faculty_id = ?")
		args = append(args, scope.ID)
	case report.ScopeDepartment:
		sb.WriteString(" AND u.department_id = ?")
		args = append(args, scope.ID)
	case report.ScopeUser:
		sb.WriteString(" AND r.owner_id = ?")
		args = append(args, scope.ID)
	}
	sb.WriteString(" ORDER BY r.owner_id, r.id")

	rows := []report.Row{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(sb.String()), args...); err != nil {
		return nil, err
	}
	return rows, nil
}
