package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRecordSubmitted   = "record.submitted"
	EventTypeRecordAdvanced    = "record.advanced"
	EventTypeRecordApproved    = "record.approved"
	EventTypeRecordRejected    = "record.rejected"
	EventTypeRecordResubmitted = "record.resubmitted"
	EventTypeRecordReopened    = "record.reopened"
)

// RecordEventTypes lists every record lifecycle event.
var RecordEventTypes = []string{
	EventTypeRecordSubmitted,
	EventTypeRecordAdvanced,
	EventTypeRecordApproved,
	EventTypeRecordRejected,
	EventTypeRecordResubmitted,
	EventTypeRecordReopened,
}

// RecordTransitionedEvent is published after a transition commits.
type RecordTransitionedEvent struct {
	Envelope
	RecordID  int64    `json:"record_id"`
	OwnerID   int64    `json:"owner_id"`
	ActorID   int64    `json:"actor_id"`
	FromStage string   `json:"from_stage,omitempty"`
	ToStage   string   `json:"to_stage"`
	Status    string   `json:"status"`
	Year      int      `json:"year"`
	Hours     *float64 `json:"hours,omitempty"`
	Comment   string   `json:"comment,omitempty"`
}

type RecordTransition struct {
	RecordID  int64
	OwnerID   int64
	ActorID   int64
	FromStage string
	ToStage   string
	Status    string
	Year      int
	Hours     *float64
	Comment   string
}

func NewRecordTransitionedEvent(eventType string, t RecordTransition) *RecordTransitionedEvent {
	return &RecordTransitionedEvent{
		Envelope: Envelope{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
		},
		RecordID:  t.RecordID,
		OwnerID:   t.OwnerID,
		ActorID:   t.ActorID,
		FromStage: t.FromStage,
		ToStage:   t.ToStage,
		Status:    t.Status,
		Year:      t.Year,
		Hours:     t.Hours,
		Comment:   t.Comment,
	}
}
