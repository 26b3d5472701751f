package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/audit"
	"github.com/frahmantamala/research-hours/internal/core/events"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/core/metrics"
	"github.com/frahmantamala/research-hours/internal/hours"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	"github.com/frahmantamala/research-hours/internal/record"
)

type OrgResolver interface {
	Assignment(ctx context.Context, userID int64) (*orgunit.Assignment, error)
}

type RuleSource interface {
	Current(ctx context.Context) (*hours.RuleTable, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service is the approval state machine. Every transition is one
// compare-and-swap on the record version plus one audit entry; the loser of
// a race gets a concurrent modification error and nothing is written.
type Service struct {
	records   record.RepositoryAPI
	trail     audit.RepositoryAPI
	org       OrgResolver
	rules     RuleSource
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	records record.RepositoryAPI,
	trail audit.RepositoryAPI,
	org OrgResolver,
	rules RuleSource,
	publisher EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		records:   records,
		trail:     trail,
		org:       org,
		rules:     rules,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Approval years come from it.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit places a new record at the first stage of its owner's path.
func (s *Service) Submit(ctx context.Context, rec *record.Record) error {
	_, path, err := s.route(ctx, rec.OwnerID)
	if err != nil {
		s.count(audit.ActionSubmit, err)
		return err
	}

	now := s.now()
	rec.Stage = path.First()
	rec.Status = record.StatusPending
	rec.Version = 1
	rec.SubmittedAt = now

	entry := &audit.Entry{
		ActorID:   rec.OwnerID,
		Action:    audit.ActionSubmit,
		ToStage:   string(rec.Stage),
		ToStatus:  string(rec.Status),
		CreatedAt: now,
	}
	if err := s.records.Create(ctx, rec, entry); err != nil {
		s.count(audit.ActionSubmit, err)
		return err
	}

	s.count(audit.ActionSubmit, nil)
	s.publish(ctx, events.EventTypeRecordSubmitted, rec, "", rec.OwnerID, "")
	return nil
}

// Advance moves a pending record exactly one stage along its path. At the
// last stage it computes hours with the current rule table and approves
// the record in the same write.
func (s *Service) Advance(ctx context.Context, actor identity.Actor, recordID int64) (*record.Record, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.IsPending() {
		s.count(audit.ActionAdvance, errors.ErrInvalidTransition)
		return nil, errors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("record %d is %s; only pending records can be advanced", rec.ID, rec.Status))
	}

	owner, path, err := s.route(ctx, rec.OwnerID)
	if err != nil {
		s.count(audit.ActionAdvance, err)
		return nil, err
	}
	if !path.Contains(rec.Stage) {
		err := errors.NewConfigurationError(
			fmt.Sprintf("record %d sits at %s, which is not on the owner's current review path; a university administrator must reject or reopen it", rec.ID, rec.Stage),
			errors.ErrCodeInvalidOrgStructure)
		s.count(audit.ActionAdvance, err)
		return nil, err
	}
	if !Authorize(actor, rec.Stage, *owner) {
		s.logger.Warn("advance denied", "record_id", rec.ID, "actor_id", actor.UserID, "stage", rec.Stage)
		s.count(audit.ActionAdvance, errors.ErrNotAuthorized)
		return nil, notAuthorizedAt(rec.Stage)
	}

	now := s.now()
	next := rec.Clone()
	next.UpdatedAt = now
	action := audit.ActionAdvance
	eventType := events.EventTypeRecordAdvanced

	if stage, ok := path.Next(rec.Stage); ok {
		next.Stage = stage
	} else {
		if err := s.applyHours(ctx, next); err != nil {
			s.count(audit.ActionApprove, err)
			return nil, err
		}
		year := now.Year()
		next.Status = record.StatusApproved
		next.ApprovedAt = &now
		next.ApprovalYear = &year
		action = audit.ActionApprove
		eventType = events.EventTypeRecordApproved
	}

	entry := transitionEntry(actor.UserID, action, rec, next, "", now)
	if err := s.records.ApplyTransition(ctx, next, rec.Version, entry); err != nil {
		s.count(action, err)
		s.logger.Warn("advance failed", "error", err, "record_id", rec.ID, "actor_id", actor.UserID)
		return nil, err
	}

	s.count(action, nil)
	s.logger.Info("record advanced",
		"record_id", rec.ID,
		"actor_id", actor.UserID,
		"from_stage", rec.Stage,
		"to_stage", next.Stage,
		"status", next.Status)
	s.publish(ctx, eventType, next, rec.Stage, actor.UserID, "")
	return next, nil
}

// Reject stops a pending record at its current stage. The owner may edit
// and resubmit it afterwards.
func (s *Service) Reject(ctx context.Context, actor identity.Actor, recordID int64, comment string) (*record.Record, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, errors.ErrCommentRequired
	}

	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.IsPending() {
		s.count(audit.ActionReject, errors.ErrInvalidTransition)
		return nil, errors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("record %d is %s; only pending records can be rejected", rec.ID, rec.Status))
	}

	owner, err := s.org.Assignment(ctx, rec.OwnerID)
	if err != nil {
		s.count(audit.ActionReject, err)
		return nil, err
	}
	if !Authorize(actor, rec.Stage, *owner) {
		s.logger.Warn("reject denied", "record_id", rec.ID, "actor_id", actor.UserID, "stage", rec.Stage)
		s.count(audit.ActionReject, errors.ErrNotAuthorized)
		return nil, notAuthorizedAt(rec.Stage)
	}

	now := s.now()
	next := rec.Clone()
	next.Status = record.StatusRejected
	next.RejectionReason = &comment
	next.RejectedAt = &now
	next.UpdatedAt = now

	entry := transitionEntry(actor.UserID, audit.ActionReject, rec, next, comment, now)
	if err := s.records.ApplyTransition(ctx, next, rec.Version, entry); err != nil {
		s.count(audit.ActionReject, err)
		return nil, err
	}

	s.count(audit.ActionReject, nil)
	s.logger.Info("record rejected", "record_id", rec.ID, "actor_id", actor.UserID, "stage", rec.Stage)
	s.publish(ctx, events.EventTypeRecordRejected, next, rec.Stage, actor.UserID, comment)
	return next, nil
}

// Resubmit sends a rejected record back to the start of its owner's
// current path.
func (s *Service) Resubmit(ctx context.Context, actor identity.Actor, recordID int64) (*record.Record, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.OwnedBy(actor.UserID) {
		s.count(audit.ActionResubmit, errors.ErrNotOwner)
		return nil, errors.ErrNotOwner
	}
	if !rec.IsRejected() {
		s.count(audit.ActionResubmit, errors.ErrInvalidTransition)
		return nil, errors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("record %d is %s; only rejected records can be resubmitted", rec.ID, rec.Status))
	}

	_, path, err := s.route(ctx, rec.OwnerID)
	if err != nil {
		s.count(audit.ActionResubmit, err)
		return nil, err
	}

	now := s.now()
	next := rec.Clone()
	next.Stage = path.First()
	next.Status = record.StatusPending
	next.RejectionReason = nil
	next.RejectedAt = nil
	next.SubmittedAt = now
	next.UpdatedAt = now

	entry := transitionEntry(actor.UserID, audit.ActionResubmit, rec, next, "", now)
	if err := s.records.ApplyTransition(ctx, next, rec.Version, entry); err != nil {
		s.count(audit.ActionResubmit, err)
		return nil, err
	}

	s.count(audit.ActionResubmit, nil)
	s.logger.Info("record resubmitted", "record_id", rec.ID, "stage", next.Stage)
	s.publish(ctx, events.EventTypeRecordResubmitted, next, rec.Stage, actor.UserID, "")
	return next, nil
}

// Reopen returns an approved record to the start of review and discards
// its computed hours. University administrators only.
func (s *Service) Reopen(ctx context.Context, actor identity.Actor, recordID int64, comment string) (*record.Record, error) {
	if !actor.IsUniversityAdmin() {
		s.count(audit.ActionReopen, errors.ErrNotAuthorized)
		return nil, errors.ErrNotAuthorized.WithMessage("only university administrators can reopen approved records")
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, errors.ErrCommentRequired.WithDetails(errors.ValidationErrors{Errors: []errors.ValidationError{
			{Field: "comment", Message: "comment is required when reopening a record", Code: string(errors.ErrCodeCommentRequired)},
		}})
	}

	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.IsApproved() {
		s.count(audit.ActionReopen, errors.ErrInvalidTransition)
		return nil, errors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("record %d is %s; only approved records can be reopened", rec.ID, rec.Status))
	}

	_, path, err := s.route(ctx, rec.OwnerID)
	if err != nil {
		s.count(audit.ActionReopen, err)
		return nil, err
	}

	now := s.now()
	next := rec.Clone()
	next.ClearHours()
	next.Stage = path.First()
	next.Status = record.StatusPending
	next.ReopenedAt = &now
	next.SubmittedAt = now
	next.UpdatedAt = now

	entry := transitionEntry(actor.UserID, audit.ActionReopen, rec, next, comment, now)
	if err := s.records.ApplyTransition(ctx, next, rec.Version, entry); err != nil {
		s.count(audit.ActionReopen, err)
		return nil, err
	}

	s.count(audit.ActionReopen, nil)
	s.logger.Info("record reopened", "record_id", rec.ID, "actor_id", actor.UserID)
	s.publish(ctx, events.EventTypeRecordReopened, next, rec.Stage, actor.UserID, comment)
	return next, nil
}

// ListPending returns the records actor can act on right now.
func (s *Service) ListPending(ctx context.Context, actor identity.Actor, limit, offset int) ([]*record.Record, error) {
	limit, offset = record.NormalizePage(limit, offset)
	filter := record.PendingFilterFor(actor, limit, offset)
	if filter.Empty() {
		return []*record.Record{}, nil
	}
	return s.records.ListPending(ctx, filter)
}

// History returns a record's audit trail to anyone who may view the record.
func (s *Service) History(ctx context.Context, actor identity.Actor, recordID int64) ([]*audit.Entry, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	ok, err := s.CanView(ctx, actor, rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrNotAuthorized.WithMessage("you may only view the history of your own records or records in your review scope")
	}
	return s.trail.ListByRecord(ctx, recordID)
}

func (s *Service) CanView(ctx context.Context, actor identity.Actor, rec *record.Record) (bool, error) {
	if rec.OwnedBy(actor.UserID) || actor.IsUniversityAdmin() {
		return true, nil
	}
	if len(actor.Roles) == 0 {
		return false, nil
	}
	owner, err := s.org.Assignment(ctx, rec.OwnerID)
	if err != nil {
		if errors.IsConfigurationError(err) {
			return false, nil
		}
		return false, err
	}
	return CanView(actor, *owner), nil
}

func (s *Service) route(ctx context.Context, ownerID int64) (*orgunit.Assignment, orgunit.Path, error) {
	owner, err := s.org.Assignment(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	path, err := orgunit.PathFor(owner)
	if err != nil {
		return nil, nil, err
	}
	return owner, path, nil
}

func (s *Service) applyHours(ctx context.Context, next *record.Record) error {
	table, err := s.rules.Current(ctx)
	if err != nil {
		return err
	}
	c, err := hours.DecodeClassification(next.Kind, next.Classification)
	if err != nil {
		return errors.NewUnclassifiedRecordError(
			fmt.Sprintf("record %d classification cannot be read: %v", next.ID, err))
	}
	res, err := hours.Compute(table, c)
	if err != nil {
		s.logger.Warn("hours computation failed", "error", err, "record_id", next.ID, "rule_version", table.Version)
		return err
	}

	h, base, annual, version := res.Hours, res.BaseHours, res.AnnualHours, res.RuleVersion
	next.Hours = &h
	next.BaseHours = &base
	next.AnnualHours = &annual
	next.RuleVersion = &version
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, rec *record.Record, from orgunit.Stage, actorID int64, comment string) {
	if s.publisher == nil {
		return
	}
	ev := events.NewRecordTransitionedEvent(eventType, events.RecordTransition{
		RecordID:  rec.ID,
		OwnerID:   rec.OwnerID,
		ActorID:   actorID,
		FromStage: string(from),
		ToStage:   string(rec.Stage),
		Status:    string(rec.Status),
		Year:      rec.Year,
		Hours:     rec.Hours,
		Comment:   comment,
	})
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish record event", "error", err, "event_type", eventType, "record_id", rec.ID)
	}
}

func (s *Service) count(action audit.Action, err error) {
	metrics.TransitionsTotal.WithLabelValues(string(action), outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.IsConcurrentModificationError(err):
		return "conflict"
	case errors.IsAuthorizationError(err):
		return "denied"
	case errors.IsConfigurationError(err), errors.IsUnclassifiedRecordError(err):
		return "misconfigured"
	default:
		return "error"
	}
}

func transitionEntry(actorID int64, action audit.Action, from, to *record.Record, comment string, at time.Time) *audit.Entry {
	return &audit.Entry{
		RecordID:   from.ID,
		ActorID:    actorID,
		Action:     action,
		FromStage:  string(from.Stage),
		ToStage:    string(to.Stage),
		FromStatus: string(from.Status),
		ToStatus:   string(to.Status),
		Comment:    comment,
		CreatedAt:  at,
	}
}

func notAuthorizedAt(stage orgunit.Stage) error {
	return errors.ErrNotAuthorized.WithMessage(
		fmt.Sprintf("you hold no role that can review this owner's records at %s", stage))
}
