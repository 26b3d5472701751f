package postgres

import (
	"context"

	"github.com/frahmantamala/research-hours/internal/audit"
	auditDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

// ListByRecord returns the trail oldest first.
func (r *AuditRepository) ListByRecord(ctx context.Context, recordID int64) ([]*audit.Entry, error) {
	var rows []*auditDatamodel.Entry
	err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return audit.FromDataModelSlice(rows), nil
}
