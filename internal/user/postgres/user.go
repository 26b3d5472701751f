package postgres

import (
	"context"
	"errors"

	appErrors "github.com/frahmantamala/research-hours/internal"
	orgDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/orgunit"
	userDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/user"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", userID, true).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, err
	}

	var roles []*orgDatamodel.AdminRole
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		Find(&roles).Error; err != nil {
		return nil, err
	}

	return user.FromDataModelWithRoles(&u, identity.RolesFromDataModel(roles)), nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	dm := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return err
	}
	u.ID = dm.ID
	u.CreatedAt = dm.CreatedAt
	u.UpdatedAt = dm.UpdatedAt
	return nil
}
