package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/core/metrics"
	"github.com/frahmantamala/research-hours/internal/hours"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	"golang.org/x/sync/singleflight"
)

const buildTimeout = 30 * time.Second

type RuleSource interface {
	Current(ctx context.Context) (*hours.RuleTable, error)
}

// DepartmentLookup lets a faculty admin request a department report inside
// their faculty.
type DepartmentLookup interface {
	Department(ctx context.Context, id int64) (*orgunit.Department, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (*Report, bool, error)
	Set(ctx context.Context, key string, rep *Report) error
	Invalidate(ctx context.Context) error
}

// Service aggregates approved hours. Identical concurrent requests share one
// computation; finished reports may be cached until the next approval.
type Service struct {
	repo   RepositoryAPI
	rules  RuleSource
	depts  DepartmentLookup
	cache  Cache
	group  singleflight.Group
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, rules RuleSource, depts DepartmentLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		rules:  rules,
		depts:  depts,
		logger: logger,
	}
}

func (s *Service) WithCache(cache Cache) *Service {
	s.cache = cache
	return s
}

// Report checks that actor may see scope, then aggregates it.
func (s *Service) Report(ctx context.Context, actor identity.Actor, scope Scope, year int) (*Report, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	ok, err := s.canRequest(ctx, actor, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("report access denied", "actor_id", actor.UserID, "scope", scope.Kind, "scope_id", scope.ID)
		return nil, errors.ErrNotAuthorized.WithMessage(fmt.Sprintf("you hold no role covering the requested %s report", scope.Kind))
	}
	return s.Aggregate(ctx, scope, year)
}

// Aggregate sums approved hours whose approval year is year. Read-only.
func (s *Service) Aggregate(ctx context.Context, scope Scope, year int) (*Report, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	key := scope.Key(year)

	if s.cache != nil {
		rep, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("report cache read failed", "error", err, "key", key)
		}
		if hit {
			metrics.ReportCacheTotal.WithLabelValues("hit").Inc()
			return rep, nil
		}
		metrics.ReportCacheTotal.WithLabelValues("miss").Inc()
	}

	// Shared by every caller waiting on key; detached from the starter's cancellation.
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		return s.build(buildCtx, scope, year)
	})
	if err != nil {
		return nil, err
	}
	rep := v.(*Report)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rep); err != nil {
			s.logger.Warn("report cache write failed", "error", err, "key", key)
		}
	}
	return rep, nil
}

// Invalidate drops cached reports. Called whenever approved hours change.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) build(ctx context.Context, scope Scope, year int) (*Report, error) {
	start := time.Now()
	defer func() {
		metrics.ReportDuration.WithLabelValues(string(scope.Kind)).Observe(time.Since(start).Seconds())
	}()

	table, err := s.rules.Current(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ApprovedRows(ctx, scope, year)
	if err != nil {
		s.logger.Error("failed to read approved hours", "error", err, "scope", scope.Kind, "year", year)
		return nil, err
	}

	rep := Build(scope, year, table, rows)
	s.logger.Info("report built",
		"scope", scope.Kind,
		"scope_id", scope.ID,
		"year", year,
		"users", len(rep.Users),
		"total", rep.Total)
	return rep, nil
}

func (s *Service) canRequest(ctx context.Context, actor identity.Actor, scope Scope) (bool, error) {
	if actor.IsUniversityAdmin() {
		return true, nil
	}
	switch scope.Kind {
	case ScopeUser:
		return scope.ID == actor.UserID, nil
	case ScopeFaculty:
		return contains(actor.ScopeIDs(identity.ScopeFaculty), scope.ID), nil
	case ScopeDepartment:
		if contains(actor.ScopeIDs(identity.ScopeDepartment), scope.ID) {
			return true, nil
		}
		faculties := actor.ScopeIDs(identity.ScopeFaculty)
		if len(faculties) == 0 || s.depts == nil {
			return false, nil
		}
		dept, err := s.depts.Department(ctx, scope.ID)
		if err != nil {
			return false, err
		}
		return contains(faculties, dept.FacultyID), nil
	}
	return false, nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
