package user

import (
	"strings"

	"github.com/frahmantamala/research-hours/internal/core/common/validation"
)

type CreateUserDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8"`
}

func (d *CreateUserDTO) Validate() error {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Name = strings.TrimSpace(d.Name)
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}
