package hours

import (
	"fmt"
	"math"
	"strings"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/metrics"
)

// Result is the credit computed for one record. AnnualHours is the share
// attributed to a single year; it differs from Hours only for multi-year
// projects.
type Result struct {
	Hours       float64 `json:"hours"`
	BaseHours   float64 `json:"base_hours"`
	AnnualHours float64 `json:"annual_hours"`
	RuleVersion string  `json:"rule_version"`
}

// Compute converts a classification into hours under table. It is pure:
// equal inputs always give equal results.
func Compute(table *RuleTable, c Classification) (Result, error) {
	if table == nil {
		return Result{}, errors.ErrRuleTableMissing
	}
	if c == nil {
		return Result{}, errors.ErrUnclassifiedRecord.WithMessage("record has no classification")
	}

	start := time.Now()
	defer func() {
		metrics.HoursComputeDuration.WithLabelValues(string(c.Kind())).Observe(time.Since(start).Seconds())
	}()

	var (
		res Result
		err error
	)
	switch v := c.(type) {
	case PublicationClassification:
		res, err = computePublication(table, v)
	case ProjectClassification:
		res, err = computeProject(table, v)
	case ActivityClassification:
		res, err = computeActivity(table, v)
	default:
		return Result{}, errors.ErrUnclassifiedRecord.WithMessage(fmt.Sprintf("unsupported classification %T", c))
	}
	if err != nil {
		return Result{}, err
	}

	res.Hours = round2(res.Hours)
	res.BaseHours = round2(res.BaseHours)
	res.AnnualHours = round2(res.AnnualHours)
	res.RuleVersion = table.Version
	return res, nil
}

func computePublication(table *RuleTable, p PublicationClassification) (Result, error) {
	rules := table.Publications
	pubType := strings.ToLower(strings.TrimSpace(p.Type))

	base, err := publicationBase(rules, pubType, p)
	if err != nil {
		return Result{}, err
	}

	if p.Republished && containsFold(rules.RepublishableTypes, pubType) {
		base *= rules.RepublishedRatio
	}

	if containsFold(rules.PatentTypes, pubType) {
		ratio, ok := rules.PatentStageRatios[strings.ToLower(p.PatentStage)]
		if !ok {
			return Result{}, unclassified("patent %q needs a patent_stage with a rule table entry, got %q", pubType, p.PatentStage)
		}
		base *= ratio
	}

	author := authorShare(rules, base, p)
	author *= coInstitutionFactor(rules, p.Institutions)

	return Result{Hours: author, BaseHours: base, AnnualHours: author}, nil
}

func publicationBase(rules PublicationRules, pubType string, p PublicationClassification) (float64, error) {
	switch pubType {
	case "journal_wos_scopus":
		if p.Quartile == "" {
			return 0, unclassified("journal_wos_scopus requires a quartile")
		}
		h, ok := rules.QuartileHours[strings.ToLower(p.Quartile)]
		if !ok {
			return 0, unclassified("quartile %q has no rule table entry", p.Quartile)
		}
		return h, nil
	case "journal_domestic":
		for _, band := range rules.DomesticPoints {
			if p.DomesticPoints >= band.MinPoints {
				return band.Hours, nil
			}
		}
		return 0, unclassified("domestic journal points %.2f match no band", p.DomesticPoints)
	}

	h, ok := rules.BaseHours[pubType]
	if !ok {
		return 0, unclassified("publication type %q has no rule table entry", p.Type)
	}
	return h, nil
}

// authorShare splits base between authors. An explicit contribution
// percentage wins; otherwise SharedFraction is split evenly and the role
// bonus is added on top.
func authorShare(rules PublicationRules, base float64, p PublicationClassification) float64 {
	if base <= 0 {
		return 0
	}
	if p.ContributionPercentage != nil && *p.ContributionPercentage > 0 && *p.ContributionPercentage <= 100 {
		return base * (*p.ContributionPercentage / 100)
	}

	authors := p.TotalAuthors
	if authors <= 0 {
		authors = 1
	}
	share := base * rules.SharedFraction / float64(authors)

	role := strings.ToLower(p.AuthorRole)
	if role == "" {
		role = "middle"
	}
	return share + base*rules.RoleBonus[role]
}

// coInstitutionFactor applies the band with the largest threshold not above n.
func coInstitutionFactor(rules PublicationRules, n int) float64 {
	for _, band := range rules.CoInstitutionDiscount {
		if n >= band.MinInstitutions {
			return band.Factor
		}
	}
	return 1
}

func computeProject(table *RuleTable, p ProjectClassification) (Result, error) {
	rules := table.Projects
	level := strings.ToLower(strings.TrimSpace(p.Level))

	var total, leader, secretary, pool float64
	leaderOnly := false

	if level == CooperationLevel {
		duration := p.DurationYears
		if duration <= 0 {
			duration = 1
		}
		c := rules.Cooperation
		total = c.Base + c.Multiplier*p.FundingBillion/float64(duration)
		leader = total * c.LeaderRatio
		secretary = total * c.SecretaryRatio
		pool = total * c.MemberRatio
	} else {
		lv, ok := rules.Levels[level]
		if !ok {
			return Result{}, unclassified("project level %q has no rule table entry", p.Level)
		}
		total, leader, secretary, pool, leaderOnly = lv.Total, lv.Leader, lv.Secretary, lv.MemberPool, lv.LeaderOnly
	}

	if strings.EqualFold(p.Status, "extended") {
		return Result{}, nil
	}

	others := 0
	if !leaderOnly {
		others = p.TotalMembers - 2
		if others < 0 {
			others = 0
		}
	}

	var user float64
	switch strings.ToLower(p.Role) {
	case "leader":
		user = leader
	case "secretary":
		if !leaderOnly {
			user = secretary
		}
	case "member":
		if others > 0 && pool > 0 {
			user = pool / float64(others)
		}
	default:
		return Result{}, unclassified("project role %q is not recognised", p.Role)
	}

	annual := user
	if level != CooperationLevel {
		span := 1
		if p.StartYear > 0 && p.EndYear >= p.StartYear {
			span = p.EndYear - p.StartYear + 1
		}
		annual = user / float64(span)
	}

	return Result{Hours: user, BaseHours: total, AnnualHours: annual}, nil
}

func computeActivity(table *RuleTable, a ActivityClassification) (Result, error) {
	perUnit, ok := table.Activities.PerUnit[strings.ToLower(strings.TrimSpace(a.Type))]
	if !ok {
		return Result{}, unclassified("activity type %q has no rule table entry", a.Type)
	}
	qty := a.Quantity
	if qty <= 0 {
		qty = 1
	}
	h := perUnit * float64(qty)
	return Result{Hours: h, BaseHours: perUnit, AnnualHours: h}, nil
}

// CapActivities limits a user's yearly activity total to the table's cap.
// A zero cap disables the limit.
func CapActivities(table *RuleTable, total float64) float64 {
	if table == nil || table.Activities.YearlyCap <= 0 {
		return total
	}
	return math.Min(total, table.Activities.YearlyCap)
}

func unclassified(format string, args ...interface{}) error {
	return errors.ErrUnclassifiedRecord.WithMessage(fmt.Sprintf(format, args...))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
