package record

import (
	"context"
	"encoding/json"
	"time"

	"github.com/frahmantamala/research-hours/internal/audit"
	recordDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/record"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/hours"
	"github.com/frahmantamala/research-hours/internal/orgunit"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Record is a research output claimed by its owner. Stage, Status and the
// hour fields change only through approval transitions.
type Record struct {
	ID              int64           `json:"id"`
	OwnerID         int64           `json:"owner_id"`
	Kind            hours.Kind      `json:"kind"`
	Title           string          `json:"title"`
	Year            int             `json:"year"`
	Classification  json.RawMessage `json:"classification"`
	Stage           orgunit.Stage   `json:"stage"`
	Status          Status          `json:"status"`
	Version         int64           `json:"version"`
	Hours           *float64        `json:"hours,omitempty"`
	BaseHours       *float64        `json:"base_hours,omitempty"`
	AnnualHours     *float64        `json:"annual_hours,omitempty"`
	RuleVersion     *string         `json:"rule_version,omitempty"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	ApprovalYear    *int            `json:"approval_year,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	ReopenedAt      *time.Time      `json:"reopened_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (r *Record) IsPending() bool  { return r.Status == StatusPending }
func (r *Record) IsApproved() bool { return r.Status == StatusApproved }
func (r *Record) IsRejected() bool { return r.Status == StatusRejected }

func (r *Record) OwnedBy(userID int64) bool {
	return r.OwnerID == userID
}

// Clone returns a copy safe to mutate while the original still holds the
// state read from storage.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Classification != nil {
		cp.Classification = append(json.RawMessage(nil), r.Classification...)
	}
	return &cp
}

// ClearHours drops every computed value, leaving the record as if it had
// never been approved.
func (r *Record) ClearHours() {
	r.Hours = nil
	r.BaseHours = nil
	r.AnnualHours = nil
	r.RuleVersion = nil
	r.ApprovedAt = nil
	r.ApprovalYear = nil
}

// PendingFilter selects pending records by the stage a reviewer may act on.
type PendingFilter struct {
	UniversityWide bool
	FacultyIDs     []int64
	DepartmentIDs  []int64
	Limit          int
	Offset         int
}

func (f PendingFilter) Empty() bool {
	return !f.UniversityWide && len(f.FacultyIDs) == 0 && len(f.DepartmentIDs) == 0
}

func PendingFilterFor(actor identity.Actor, limit, offset int) PendingFilter {
	return PendingFilter{
		UniversityWide: actor.IsUniversityAdmin(),
		FacultyIDs:     actor.ScopeIDs(identity.ScopeFaculty),
		DepartmentIDs:  actor.ScopeIDs(identity.ScopeDepartment),
		Limit:          limit,
		Offset:         offset,
	}
}

type RepositoryAPI interface {
	// Create inserts the record and its submit entry atomically.
	Create(ctx context.Context, rec *Record, entry *audit.Entry) error
	GetByID(ctx context.Context, id int64) (*Record, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]*Record, error)
	ListPending(ctx context.Context, filter PendingFilter) ([]*Record, error)
	// ApplyTransition stores next only if the stored version still equals
	// expectedVersion, and appends entry in the same transaction.
	ApplyTransition(ctx context.Context, next *Record, expectedVersion int64, entry *audit.Entry) error
	UpdateContent(ctx context.Context, next *Record, expectedVersion int64) error
}

// Gatekeeper routes new records onto their review path and decides who
// besides the owner may read a record.
type Gatekeeper interface {
	Submit(ctx context.Context, rec *Record) error
	CanView(ctx context.Context, actor identity.Actor, rec *Record) (bool, error)
}

func ToDataModel(r *Record) *recordDatamodel.Record {
	return &recordDatamodel.Record{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Kind:            string(r.Kind),
		Title:           r.Title,
		Year:            r.Year,
		Classification:  string(r.Classification),
		Stage:           string(r.Stage),
		Status:          string(r.Status),
		Version:         r.Version,
		Hours:           r.Hours,
		BaseHours:       r.BaseHours,
		AnnualHours:     r.AnnualHours,
		RuleVersion:     r.RuleVersion,
		RejectionReason: r.RejectionReason,
		SubmittedAt:     r.SubmittedAt,
		ApprovedAt:      r.ApprovedAt,
		ApprovalYear:    r.ApprovalYear,
		RejectedAt:      r.RejectedAt,
		ReopenedAt:      r.ReopenedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func FromDataModel(r *recordDatamodel.Record) *Record {
	return &Record{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Kind:            hours.Kind(r.Kind),
		Title:           r.Title,
		Year:            r.Year,
		Classification:  json.RawMessage(r.Classification),
		Stage:           orgunit.Stage(r.Stage),
		Status:          Status(r.Status),
		Version:         r.Version,
		Hours:           r.Hours,
		BaseHours:       r.BaseHours,
		AnnualHours:     r.AnnualHours,
		RuleVersion:     r.RuleVersion,
		RejectionReason: r.RejectionReason,
		SubmittedAt:     r.SubmittedAt,
		ApprovedAt:      r.ApprovedAt,
		ApprovalYear:    r.ApprovalYear,
		RejectedAt:      r.RejectedAt,
		ReopenedAt:      r.ReopenedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*recordDatamodel.Record) []*Record {
	result := make([]*Record, len(rows))
	for i, r := range rows {
		result[i] = FromDataModel(r)
	}
	return result
}
