package auth

import "github.com/frahmantamala/research-hours/internal/core/common/validation"

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (d LoginDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

func (d RefreshTokenDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}
