package audit

import (
	"context"
	"time"

	auditDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/audit"
)

type Action string

const (
	ActionSubmit   Action = "submit"
	ActionAdvance  Action = "advance"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionResubmit Action = "resubmit"
	ActionReopen   Action = "reopen"
)

// Entry is one row of a record's approval trail. Entries are only ever
// appended, in the same transaction as the transition they describe.
type Entry struct {
	ID         int64     `json:"id"`
	RecordID   int64     `json:"record_id"`
	ActorID    int64     `json:"actor_id"`
	Action     Action    `json:"action"`
	FromStage  string    `json:"from_stage,omitempty"`
	ToStage    string    `json:"to_stage,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type RepositoryAPI interface {
	ListByRecord(ctx context.Context, recordID int64) ([]*Entry, error)
}

func ToDataModel(e *Entry) *auditDatamodel.Entry {
	return &auditDatamodel.Entry{
		ID:         e.ID,
		RecordID:   e.RecordID,
		ActorID:    e.ActorID,
		Action:     string(e.Action),
		FromStage:  e.FromStage,
		ToStage:    e.ToStage,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Comment:    e.Comment,
		CreatedAt:  e.CreatedAt,
	}
}

func FromDataModel(e *auditDatamodel.Entry) *Entry {
	return &Entry{
		ID:         e.ID,
		RecordID:   e.RecordID,
		ActorID:    e.ActorID,
		Action:     Action(e.Action),
		FromStage:  e.FromStage,
		ToStage:    e.ToStage,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Comment:    e.Comment,
		CreatedAt:  e.CreatedAt,
	}
}

func FromDataModelSlice(entries []*auditDatamodel.Entry) []*Entry {
	result := make([]*Entry, len(entries))
	for i, e := range entries {
		result[i] = FromDataModel(e)
	}
	return result
}
