package hours

import (
	"encoding/json"
	"fmt"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/common/validation"
)

type Kind string

const (
	KindPublication Kind = "publication"
	KindProject     Kind = "project"
	KindActivity    Kind = "activity"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPublication, KindProject, KindActivity:
		return true
	}
	return false
}

// Classification is the closed set of record classifications. The state
// machine stores it as opaque JSON; only the calculator reads its fields.
type Classification interface {
	Kind() Kind
	sealed()
}

type PublicationClassification struct {
	Type                   string   `json:"type" validate:"required"`
	Quartile               string   `json:"quartile,omitempty" validate:"omitempty,oneof=Q1 Q2 Q3 Q4 q1 q2 q3 q4"`
	DomesticPoints         float64  `json:"domestic_points,omitempty" validate:"gte=0"`
	PatentStage            string   `json:"patent_stage,omitempty"`
	Republished            bool     `json:"republished,omitempty"`
	AuthorRole             string   `json:"author_role,omitempty" validate:"omitempty,oneof=first corresponding first_corresponding middle"`
	TotalAuthors           int      `json:"total_authors" validate:"gte=0,lte=1000"`
	ContributionPercentage *float64 `json:"contribution_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	Institutions           int      `json:"institutions,omitempty" validate:"gte=0"`
}

type ProjectClassification struct {
	Level          string  `json:"level" validate:"required"`
	Role           string  `json:"role" validate:"required,oneof=leader secretary member"`
	Status         string  `json:"status,omitempty" validate:"omitempty,oneof=ongoing completed extended"`
	FundingBillion float64 `json:"funding_billion,omitempty" validate:"gte=0"`
	DurationYears  int     `json:"duration_years,omitempty" validate:"gte=0"`
	TotalMembers   int     `json:"total_members,omitempty" validate:"gte=0"`
	StartYear      int     `json:"start_year,omitempty"`
	EndYear        int     `json:"end_year,omitempty" validate:"omitempty,gtefield=StartYear"`
}

type ActivityClassification struct {
	Type     string `json:"type" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func (PublicationClassification) Kind() Kind { return KindPublication }
func (ProjectClassification) Kind() Kind     { return KindProject }
func (ActivityClassification) Kind() Kind    { return KindActivity }

func (PublicationClassification) sealed() {}
func (ProjectClassification) sealed()     {}
func (ActivityClassification) sealed()    {}

// DecodeClassification parses the stored JSON for a record of the given kind
// and validates field shapes. Whether the values have a rule table entry is
// decided later by Compute.
func DecodeClassification(kind Kind, raw json.RawMessage) (Classification, error) {
	if len(raw) == 0 {
		return nil, errors.NewValidationFieldError("classification", "classification is required", errors.ErrCodeValidationFailed)
	}

	var c Classification
	switch kind {
	case KindPublication:
		var p PublicationClassification
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeError(err)
		}
		c = p
	case KindProject:
		var p ProjectClassification
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, decodeError(err)
		}
		c = p
	case KindActivity:
		var a ActivityClassification
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, decodeError(err)
		}
		c = a
	default:
		return nil, errors.NewValidationFieldError("kind", fmt.Sprintf("unknown record kind %q", kind), errors.ErrCodeInvalidKind)
	}

	if err := validation.Struct(c); err != nil {
		return nil, err
	}
	return c, nil
}

func EncodeClassification(c Classification) (json.RawMessage, error) {
	return json.Marshal(c)
}

func decodeError(err error) error {
	return errors.NewValidationFieldError("classification", "classification is not valid JSON: "+err.Error(), errors.ErrCodeValidationFailed)
}
