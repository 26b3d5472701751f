package record

import (
	"encoding/json"

	"github.com/frahmantamala/research-hours/internal/core/common/validation"
	"github.com/frahmantamala/research-hours/internal/hours"
)

type CreateRecordDTO struct {
	Kind           hours.Kind      `json:"kind" validate:"required,oneof=publication project activity"`
	Title          string          `json:"title" validate:"required,max=500"`
	Year           int             `json:"year"`
	Classification json.RawMessage `json:"classification" validate:"required"`
}

// Validate checks the envelope and that the classification decodes for the
// declared kind. Whether the rule table knows the values is decided at
// approval time.
func (dto CreateRecordDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	if err := validation.ValidateRecordYear(dto.Year); err != nil {
		return err
	}
	if _, err := hours.DecodeClassification(dto.Kind, dto.Classification); err != nil {
		return err
	}
	return nil
}

// UpdateRecordDTO replaces the owner-editable content of a rejected record.
// The kind is fixed at creation.
type UpdateRecordDTO struct {
	Title          string          `json:"title" validate:"required,max=500"`
	Year           int             `json:"year"`
	Classification json.RawMessage `json:"classification" validate:"required"`
}

func (dto UpdateRecordDTO) Validate(kind hours.Kind) error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	if err := validation.ValidateRecordYear(dto.Year); err != nil {
		return err
	}
	if _, err := hours.DecodeClassification(kind, dto.Classification); err != nil {
		return err
	}
	return nil
}

type RecordsResponse struct {
	Records []*Record `json:"records"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
}
