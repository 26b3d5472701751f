package hours

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RuleTable is one immutable snapshot of the regulation coefficients.
// Values handed out by RuleStore are shared and must be treated as read-only.
type RuleTable struct {
	Version      string           `json:"version" mapstructure:"-"`
	Name         string           `json:"name" mapstructure:"name"`
	CreatedAt    time.Time        `json:"created_at" mapstructure:"-"`
	Publications PublicationRules `json:"publications" mapstructure:"publications"`
	Projects     ProjectRules     `json:"projects" mapstructure:"projects"`
	Activities   ActivityRules    `json:"activities" mapstructure:"activities"`
}

type PublicationRules struct {
	// BaseHours covers every type whose base does not depend on a grade.
	BaseHours map[string]float64 `json:"base_hours" mapstructure:"base_hours"`
	// QuartileHours grades journal_wos_scopus by lower-case quartile.
	QuartileHours  map[string]float64 `json:"quartile_hours" mapstructure:"quartile_hours"`
	DomesticPoints []PointBand        `json:"domestic_points" mapstructure:"domestic_points"`

	RepublishedRatio   float64            `json:"republished_ratio" mapstructure:"republished_ratio"`
	RepublishableTypes []string           `json:"republishable_types" mapstructure:"republishable_types"`
	PatentTypes        []string           `json:"patent_types" mapstructure:"patent_types"`
	PatentStageRatios  map[string]float64 `json:"patent_stage_ratios" mapstructure:"patent_stage_ratios"`

	SharedFraction float64            `json:"shared_fraction" mapstructure:"shared_fraction"`
	RoleBonus      map[string]float64 `json:"role_bonus" mapstructure:"role_bonus"`

	CoInstitutionDiscount []DiscountBand `json:"co_institution_discount" mapstructure:"co_institution_discount"`
}

// PointBand grants Hours to domestic journals scoring at least MinPoints.
type PointBand struct {
	MinPoints float64 `json:"min_points" mapstructure:"min_points"`
	Hours     float64 `json:"hours" mapstructure:"hours"`
}

// DiscountBand scales author hours once a paper lists at least
// MinInstitutions affiliated institutions.
type DiscountBand struct {
	MinInstitutions int     `json:"min_institutions" mapstructure:"min_institutions"`
	Factor          float64 `json:"factor" mapstructure:"factor"`
}

type ProjectRules struct {
	Levels      map[string]ProjectLevel `json:"levels" mapstructure:"levels"`
	Cooperation CooperationRule         `json:"cooperation" mapstructure:"cooperation"`
}

// ProjectLevel splits a fixed budget between leader, secretary and the
// pool shared by the remaining members.
type ProjectLevel struct {
	Total      float64 `json:"total" mapstructure:"total"`
	Leader     float64 `json:"leader" mapstructure:"leader"`
	Secretary  float64 `json:"secretary" mapstructure:"secretary"`
	MemberPool float64 `json:"member_pool" mapstructure:"member_pool"`
	LeaderOnly bool    `json:"leader_only" mapstructure:"leader_only"`
}

// CooperationRule: total = Base + Multiplier * funding / duration, already
// a per-year figure.
type CooperationRule struct {
	Base           float64 `json:"base" mapstructure:"base"`
	Multiplier     float64 `json:"multiplier" mapstructure:"multiplier"`
	LeaderRatio    float64 `json:"leader_ratio" mapstructure:"leader_ratio"`
	SecretaryRatio float64 `json:"secretary_ratio" mapstructure:"secretary_ratio"`
	MemberRatio    float64 `json:"member_ratio" mapstructure:"member_ratio"`
}

type ActivityRules struct {
	PerUnit   map[string]float64 `json:"per_unit" mapstructure:"per_unit"`
	YearlyCap float64            `json:"yearly_cap" mapstructure:"yearly_cap"`
}

const CooperationLevel = "cooperation"

// Default returns the coefficients of Decision 2706/QD-DHCN.
func Default() *RuleTable {
	return &RuleTable{
		Name: "QD-2706-DHCN",
		Publications: PublicationRules{
			BaseHours: map[string]float64{
				"journal_vnu_special":             900,
				"journal_rev":                     900,
				"journal_international_reputable": 900,
				"conference_wos_scopus":           900,
				"conference_international":        600,
				"conference_national":             500,
				"monograph_international":         2700,
				"monograph_domestic":              1500,
				"textbook_international":          1800,
				"textbook_domestic":               900,
				"book_chapter_reputable":          1200,
				"book_chapter_international":      900,
				"patent_international":            3000,
				"patent_vietnam":                  1800,
				"utility_solution":                1200,
				"award_international":             1800,
				"award_national":                  1200,
				"exhibition_international":        900,
				"exhibition_national":             600,
				"exhibition_provincial":           400,
			},
			QuartileHours: map[string]float64{
				"q1": 1800,
				"q2": 1800,
				"q3": 1400,
				"q4": 1400,
			},
			DomesticPoints: []PointBand{
				{MinPoints: 1.0, Hours: 800},
				{MinPoints: 0.5, Hours: 600},
				{MinPoints: 0, Hours: 300},
			},
			RepublishedRatio: 1.0 / 3.0,
			RepublishableTypes: []string{
				"monograph_international",
				"monograph_domestic",
				"textbook_international",
				"textbook_domestic",
				"book_chapter_reputable",
				"book_chapter_international",
			},
			PatentTypes: []string{"patent_international", "patent_vietnam", "utility_solution"},
			PatentStageRatios: map[string]float64{
				"stage_1": 1.0 / 3.0,
				"stage_2": 2.0 / 3.0,
			},
			SharedFraction: 2.0 / 3.0,
			RoleBonus: map[string]float64{
				"first_corresponding": 1.0 / 3.0,
				"first":               1.0 / 6.0,
				"corresponding":       1.0 / 6.0,
				"middle":              0,
			},
		},
		Projects: ProjectRules{
			Levels: map[string]ProjectLevel{
				"national":     {Total: 1000, Leader: 500, Secretary: 250, MemberPool: 250},
				"vnu_ministry": {Total: 800, Leader: 400, Secretary: 200, MemberPool: 200},
				"university":   {Total: 300, Leader: 300, LeaderOnly: true},
			},
			Cooperation: CooperationRule{
				Base:           100,
				Multiplier:     1000,
				LeaderRatio:    0.50,
				SecretaryRatio: 0.25,
				MemberRatio:    0.25,
			},
		},
		Activities: ActivityRules{
			PerUnit: map[string]float64{
				"student_research_university": 75,
				"student_research_faculty":    30,
				"team_training":               75,
				"exhibition_product":          45,
			},
			YearlyCap: 250,
		},
	}
}

// Normalize lower-cases lookup keys and orders the bands so lookups can
// take the first match.
func (t *RuleTable) Normalize() {
	t.Publications.BaseHours = lowerKeys(t.Publications.BaseHours)
	t.Publications.QuartileHours = lowerKeys(t.Publications.QuartileHours)
	t.Publications.PatentStageRatios = lowerKeys(t.Publications.PatentStageRatios)
	t.Publications.RoleBonus = lowerKeys(t.Publications.RoleBonus)
	t.Activities.PerUnit = lowerKeys(t.Activities.PerUnit)

	sort.SliceStable(t.Publications.DomesticPoints, func(i, j int) bool {
		return t.Publications.DomesticPoints[i].MinPoints > t.Publications.DomesticPoints[j].MinPoints
	})
	sort.SliceStable(t.Publications.CoInstitutionDiscount, func(i, j int) bool {
		return t.Publications.CoInstitutionDiscount[i].MinInstitutions > t.Publications.CoInstitutionDiscount[j].MinInstitutions
	})

	if t.Projects.Levels != nil {
		levels := make(map[string]ProjectLevel, len(t.Projects.Levels))
		for k, v := range t.Projects.Levels {
			levels[strings.ToLower(k)] = v
		}
		t.Projects.Levels = levels
	}
}

func (t *RuleTable) Validate() error {
	var errs []string
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, "name is required")
	}
	if len(t.Publications.BaseHours) == 0 {
		errs = append(errs, "publications.base_hours must not be empty")
	}
	if t.Publications.SharedFraction <= 0 || t.Publications.SharedFraction > 1 {
		errs = append(errs, "publications.shared_fraction must be in (0, 1]")
	}
	for _, b := range t.Publications.CoInstitutionDiscount {
		if b.MinInstitutions < 1 || b.Factor <= 0 || b.Factor > 1 {
			errs = append(errs, fmt.Sprintf("co_institution_discount band %d/%v is out of range", b.MinInstitutions, b.Factor))
		}
	}
	if len(t.Projects.Levels) == 0 {
		errs = append(errs, "projects.levels must not be empty")
	}
	if t.Activities.YearlyCap < 0 {
		errs = append(errs, "activities.yearly_cap must not be negative")
	}
	for k, v := range t.Activities.PerUnit {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("activities.per_unit.%s must not be negative", k))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func lowerKeys(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
