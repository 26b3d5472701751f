package auth

import (
	"context"
	"errors"

	appErrors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/auth"
	orgDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/orgunit"
	userDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/user"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetPasswordForEmail(ctx context.Context, email string) (string, int64, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "password_hash").
		Where("email = ? AND is_active = ?", email, true).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", 0, appErrors.ErrUserNotFound
		}
		return "", 0, err
	}
	return u.PasswordHash, u.ID, nil
}

func (r *Repository) GetUserWithRoles(ctx context.Context, userID int64) (*auth.User, error) {
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

	return &auth.User{
		ID:    u.ID,
		Email: u.Email,
		Roles: identity.RolesFromDataModel(roles),
	}, nil
}
