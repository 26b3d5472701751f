package hours

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	ruleDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/ruletable"
	"github.com/frahmantamala/research-hours/internal/core/ids"
	"github.com/spf13/viper"
)

type RepositoryAPI interface {
	LatestVersion(ctx context.Context) (string, error)
	Get(ctx context.Context, version string) (*ruleDatamodel.Snapshot, error)
	Create(ctx context.Context, snapshot *ruleDatamodel.Snapshot) error
	List(ctx context.Context) ([]*ruleDatamodel.Snapshot, error)
}

// RuleStore publishes and serves rule table snapshots. Snapshots never
// change once written, so decoded tables are cached by version forever.
type RuleStore struct {
	repo   RepositoryAPI
	logger *slog.Logger

	mu        sync.RWMutex
	byVersion map[string]*RuleTable
}

func NewRuleStore(repo RepositoryAPI, logger *slog.Logger) *RuleStore {
	return &RuleStore{
		repo:      repo,
		logger:    logger,
		byVersion: make(map[string]*RuleTable),
	}
}

// Current returns the most recently published snapshot.
func (s *RuleStore) Current(ctx context.Context) (*RuleTable, error) {
	version, err := s.repo.LatestVersion(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.ErrRuleTableMissing
		}
		s.logger.Error("failed to read latest rule table version", "error", err)
		return nil, err
	}
	return s.Get(ctx, version)
}

func (s *RuleStore) Get(ctx context.Context, version string) (*RuleTable, error) {
	s.mu.RLock()
	t, ok := s.byVersion[version]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	row, err := s.repo.Get(ctx, version)
	if err != nil {
		return nil, err
	}
	t, err = FromDataModel(row)
	if err != nil {
		s.logger.Error("stored rule table is unreadable", "version", version, "error", err)
		return nil, errors.NewInternalError("stored rule table is unreadable", err)
	}

	s.mu.Lock()
	s.byVersion[version] = t
	s.mu.Unlock()
	return t, nil
}

func (s *RuleStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SnapshotInfo, len(rows))
	for i, r := range rows {
		out[i] = SnapshotInfo{Version: r.Version, Name: r.Name, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

// Publish stores table as a new snapshot with a fresh version. The caller's
// value is copied; later edits to it do not reach the stored snapshot.
func (s *RuleStore) Publish(ctx context.Context, table *RuleTable, createdBy *int64) (*RuleTable, error) {
	if table == nil {
		return nil, errors.NewValidationError("rule table is required", errors.ErrCodeValidationFailed)
	}

	snapshot, err := clone(table)
	if err != nil {
		return nil, err
	}
	snapshot.Normalize()
	if err := snapshot.Validate(); err != nil {
		return nil, errors.NewValidationError("invalid rule table: "+err.Error(), errors.ErrCodeValidationFailed)
	}
	snapshot.Version = ids.New()
	snapshot.CreatedAt = time.Now().UTC()

	row, err := ToDataModel(snapshot, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to store rule table", "error", err, "name", snapshot.Name)
		return nil, err
	}

	s.mu.Lock()
	s.byVersion[snapshot.Version] = snapshot
	s.mu.Unlock()

	s.logger.Info("rule table published", "version", snapshot.Version, "name", snapshot.Name)
	return snapshot, nil
}

// Bootstrap publishes a first snapshot when none exists, from path if it
// names a readable file and from Default otherwise.
func (s *RuleStore) Bootstrap(ctx context.Context, path string) (*RuleTable, error) {
	current, err := s.Current(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.IsConfigurationError(err) {
		return nil, err
	}

	table := Default()
	if path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			table, err = LoadFile(path)
			if err != nil {
				return nil, err
			}
		}
	}
	s.logger.Info("no rule table published yet, bootstrapping", "name", table.Name, "source", path)
	return s.Publish(ctx, table, nil)
}

// Preview computes hours against the current snapshot without storing anything.
func (s *RuleStore) Preview(ctx context.Context, kind Kind, raw json.RawMessage) (Result, error) {
	c, err := DecodeClassification(kind, raw)
	if err != nil {
		return Result{}, err
	}
	table, err := s.Current(ctx)
	if err != nil {
		return Result{}, err
	}
	return Compute(table, c)
}

// LoadFile reads a rule table from YAML or JSON.
func LoadFile(path string) (*RuleTable, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rule table %s: %w", path, err)
	}

	var t RuleTable
	if err := v.Unmarshal(&t); err != nil {
		return nil, fmt.Errorf("decode rule table %s: %w", path, err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("rule table %s: %w", path, err)
	}
	return &t, nil
}

type SnapshotInfo struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	CreatedBy *int64    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func ToDataModel(t *RuleTable, createdBy *int64) (*ruleDatamodel.Snapshot, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode rule table: %w", err)
	}
	return &ruleDatamodel.Snapshot{
		Version:   t.Version,
		Name:      t.Name,
		Payload:   string(payload),
		CreatedBy: createdBy,
		CreatedAt: t.CreatedAt,
	}, nil
}

func FromDataModel(row *ruleDatamodel.Snapshot) (*RuleTable, error) {
	var t RuleTable
	if err := json.Unmarshal([]byte(row.Payload), &t); err != nil {
		return nil, err
	}
	t.Version = row.Version
	t.CreatedAt = row.CreatedAt
	t.Normalize()
	return &t, nil
}

func clone(t *RuleTable) (*RuleTable, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("copy rule table: %w", err)
	}
	var out RuleTable
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("copy rule table: %w", err)
	}
	return &out, nil
}

func isNotFound(err error) bool {
	appErr, ok := errors.IsAppError(err)
	return ok && appErr.Type == errors.ErrorTypeNotFound
}
