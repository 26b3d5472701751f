package record

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/identity"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Service struct {
	repo       RepositoryAPI
	gatekeeper Gatekeeper
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, gatekeeper Gatekeeper, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		gatekeeper: gatekeeper,
		logger:     logger,
	}
}

// Create stores a new record and submits it onto the owner's review path in
// one step. There is no draft state.
func (s *Service) Create(ctx context.Context, ownerID int64, dto CreateRecordDTO) (*Record, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("record validation failed", "error", err, "owner_id", ownerID)
		return nil, err
	}

	now := time.Now()
	rec := &Record{
		OwnerID:        ownerID,
		Kind:           dto.Kind,
		Title:          dto.Title,
		Year:           dto.Year,
		Classification: dto.Classification,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.gatekeeper.Submit(ctx, rec); err != nil {
		s.logger.Error("failed to submit record", "error", err, "owner_id", ownerID)
		return nil, err
	}

	s.logger.Info("record created",
		"record_id", rec.ID,
		"owner_id", ownerID,
		"kind", rec.Kind,
		"stage", rec.Stage)

	return rec, nil
}

// Get returns a record to its owner or to any reviewer the gatekeeper lets
// see it.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id int64) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnedBy(actor.UserID) {
		return rec, nil
	}

	ok, err := s.gatekeeper.CanView(ctx, actor, rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("record access denied", "record_id", id, "actor_id", actor.UserID)
		return nil, errors.ErrNotAuthorized.WithMessage("you may only view your own records or records in your review scope")
	}
	return rec, nil
}

func (s *Service) ListMine(ctx context.Context, ownerID int64, limit, offset int) ([]*Record, error) {
	limit, offset = NormalizePage(limit, offset)
	records, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list records", "error", err, "owner_id", ownerID)
		return nil, err
	}
	return records, nil
}

// Update lets the owner correct a rejected record before resubmitting it.
func (s *Service) Update(ctx context.Context, actor identity.Actor, id int64, dto UpdateRecordDTO) (*Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.OwnedBy(actor.UserID) {
		return nil, errors.ErrNotOwner
	}
	if !rec.IsRejected() {
		return nil, errors.ErrInvalidTransition.WithMessage("only rejected records can be edited; current status is " + string(rec.Status))
	}
	if err := dto.Validate(rec.Kind); err != nil {
		return nil, err
	}

	next := rec.Clone()
	next.Title = dto.Title
	next.Year = dto.Year
	next.Classification = dto.Classification
	next.UpdatedAt = time.Now()

	if err := s.repo.UpdateContent(ctx, next, rec.Version); err != nil {
		s.logger.Warn("failed to update record", "error", err, "record_id", id)
		return nil, err
	}

	s.logger.Info("record updated", "record_id", id, "owner_id", actor.UserID, "version", next.Version)
	return next, nil
}

func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
