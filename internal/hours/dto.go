package hours

import (
	"encoding/json"

	"github.com/frahmantamala/research-hours/internal/core/common/validation"
)

type PreviewDTO struct {
	Kind           string          `json:"kind" validate:"required,oneof=publication project activity"`
	Classification json.RawMessage `json:"classification" validate:"required"`
}

func (dto PreviewDTO) Validate() error {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	return nil
}

type RuleTablesResponse struct {
	RuleTables []SnapshotInfo `json:"rule_tables"`
}
