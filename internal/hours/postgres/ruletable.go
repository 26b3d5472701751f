package postgres

import (
	"context"
	"errors"

	appErrors "github.com/frahmantamala/research-hours/internal"
	ruleDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/ruletable"
	"github.com/frahmantamala/research-hours/internal/hours"
	"gorm.io/gorm"
)

type RuleTableRepository struct {
	db *gorm.DB
}

func NewRuleTableRepository(db *gorm.DB) hours.RepositoryAPI {
	return &RuleTableRepository{db: db}
}

// LatestVersion relies on ULID versions sorting in publication order.
func (r *RuleTableRepository) LatestVersion(ctx context.Context) (string, error) {
	var row ruleDatamodel.Snapshot
	err := r.db.WithContext(ctx).Select("version").Order("version DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", appErrors.ErrRuleTableNotFound
		}
		return "", err
	}
	return row.Version, nil
}

func (r *RuleTableRepository) Get(ctx context.Context, version string) (*ruleDatamodel.Snapshot, error) {
	var row ruleDatamodel.Snapshot
	if err := r.db.WithContext(ctx).Where("version = ?", version).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrRuleTableNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Create only inserts; snapshots are never updated.
func (r *RuleTableRepository) Create(ctx context.Context, snapshot *ruleDatamodel.Snapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *RuleTableRepository) List(ctx context.Context) ([]*ruleDatamodel.Snapshot, error) {
	var rows []*ruleDatamodel.Snapshot
	err := r.db.WithContext(ctx).
		Select("version", "name", "created_by", "created_at").
		Order("version DESC").
		Find(&rows).Error
	return rows, err
}
