package postgres

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/audit"
	recordDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/record"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	"github.com/frahmantamala/research-hours/internal/record"
	"gorm.io/gorm"
)

type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) record.RepositoryAPI {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, rec *record.Record, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := record.ToDataModel(rec)
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		rec.ID = row.ID

		entry.RecordID = row.ID
		auditRow := audit.ToDataModel(entry)
		if err := tx.Create(auditRow).Error; err != nil {
			return err
		}
		entry.ID = auditRow.ID
		return nil
	})
}

func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*record.Record, error) {
	var row recordDatamodel.Record
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrRecordNotFound
		}
		return nil, err
	}
	return record.FromDataModel(&row), nil
}

func (r *RecordRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]*record.Record, error) {
	var rows []*recordDatamodel.Record
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return record.FromDataModelSlice(rows), nil
}

// ListPending mirrors the stage authorization rules in SQL: university
// reviewers see every pending record, faculty reviewers match on the owner's
// department's faculty, department reviewers on the owner's department.
func (r *RecordRepository) ListPending(ctx context.Context, filter record.PendingFilter) ([]*record.Record, error) {
	if filter.Empty() {
		return []*record.Record{}, nil
	}

	scope := r.db.Where("1 = 0")
	if filter.UniversityWide {
		scope = r.db.Where("1 = 1")
	}
	if len(filter.FacultyIDs) > 0 {
		scope = scope.Or("records.stage = ? AND d.faculty_id IN ?", string(orgunit.StageFacultyReview), filter.FacultyIDs)
	}
	if len(filter.DepartmentIDs) > 0 {
		scope = scope.Or("records.stage = ? AND u.department_id IN ?", string(orgunit.StageDepartmentReview), filter.DepartmentIDs)
	}

	var rows []*recordDatamodel.Record
	err := r.db.WithContext(ctx).
		Model(&recordDatamodel.Record{}).
		Select("records.*").
		Joins("JOIN users u ON u.id = records.owner_id").
		Joins("LEFT JOIN departments d ON d.id = u.department_id").
		Where("records.status = ?", string(record.StatusPending)).
		Where(scope).
		Order("records.submitted_at ASC, records.id ASC"). // FIFO for reviewers
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return record.FromDataModelSlice(rows), nil
}

func (r *RecordRepository) ApplyTransition(ctx context.Context, next *record.Record, expectedVersion int64, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&recordDatamodel.Record{}).
			Where("id = ? AND version = ?", next.ID, expectedVersion).
			Updates(map[string]interface{}{
				"stage":            string(next.Stage),
				"status":           string(next.Status),
				"version":          expectedVersion + 1,
				"hours":            next.Hours,
				"base_hours":       next.BaseHours,
				"annual_hours":     next.AnnualHours,
				"rule_version":     next.RuleVersion,
				"rejection_reason": next.RejectionReason,
				"submitted_at":     next.SubmittedAt,
				"approved_at":      next.ApprovedAt,
				"approval_year":    next.ApprovalYear,
				"rejected_at":      next.RejectedAt,
				"reopened_at":      next.ReopenedAt,
				"updated_at":       now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return appErrors.ErrConcurrentModification
		}

		entry.RecordID = next.ID
		auditRow := audit.ToDataModel(entry)
		if err := tx.Create(auditRow).Error; err != nil {
			return err
		}

		next.Version = expectedVersion + 1
		next.UpdatedAt = now
		entry.ID = auditRow.ID
		return nil
	})
}

func (r *RecordRepository) UpdateContent(ctx context.Context, next *record.Record, expectedVersion int64) error {
	res := r.db.WithContext(ctx).
		Model(&recordDatamodel.Record{}).
		Where("id = ? AND version = ?", next.ID, expectedVersion).
		Updates(map[string]interface{}{
			"title":          next.Title,
			"year":           next.Year,
			"classification": string(next.Classification),
			"version":        expectedVersion + 1,
			"updated_at":     next.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appErrors.ErrConcurrentModification
	}
	next.Version = expectedVersion + 1
	return nil
}
