package user

import (
	"context"
	"fmt"
	"log/slog"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *User) error
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type Service struct {
	repo   Repository
	hasher PasswordHasher
	logger *slog.Logger
}

func NewService(repo Repository, hasher PasswordHasher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// GetByID returns the profile with active roles. Inactive users are not found.
func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create registers an unassigned user. Placement in the hierarchy and role
// grants go through the org unit endpoints.
func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailExists(ctx, dto.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := s.hasher.HashPassword(dto.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		s.logger.Error("failed to create user", "email", dto.Email, "error", err)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", "user_id", u.ID)
	return u, nil
}
