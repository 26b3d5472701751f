package hours_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	errors "github.com/frahmantamala/research-hours/internal"
	ruleDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/ruletable"
	"github.com/frahmantamala/research-hours/internal/hours"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockRepository implements hours.RepositoryAPI for testing
type MockRepository struct {
	rows  map[string]*ruleDatamodel.Snapshot
	gets  int
	fails error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{rows: make(map[string]*ruleDatamodel.Snapshot)}
}

func (m *MockRepository) LatestVersion(_ context.Context) (string, error) {
	if m.fails != nil {
		return "", m.fails
	}
	if len(m.rows) == 0 {
		return "", errors.ErrRuleTableNotFound
	}
	versions := make([]string, 0, len(m.rows))
	for v := range m.rows {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions[len(versions)-1], nil
}

func (m *MockRepository) Get(_ context.Context, version string) (*ruleDatamodel.Snapshot, error) {
	m.gets++
	row, ok := m.rows[version]
	if !ok {
		return nil, errors.ErrRuleTableNotFound
	}
	return row, nil
}

func (m *MockRepository) Create(_ context.Context, row *ruleDatamodel.Snapshot) error {
	m.rows[row.Version] = row
	return nil
}

func (m *MockRepository) List(_ context.Context) ([]*ruleDatamodel.Snapshot, error) {
	var out []*ruleDatamodel.Snapshot
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

var _ = Describe("RuleStore", func() {
	var (
		ctx      context.Context
		mockRepo *MockRepository
		store    *hours.RuleStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockRepo = NewMockRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = hours.NewRuleStore(mockRepo, logger)
	})

	Describe("Current", func() {
		It("should report a configuration error before anything is published", func() {
			_, err := store.Current(ctx)
			Expect(errors.IsConfigurationError(err)).To(BeTrue())
		})

		It("should return the latest published snapshot", func() {
			first, err := store.Publish(ctx, hours.Default(), nil)
			Expect(err).NotTo(HaveOccurred())

			next := hours.Default()
			next.Name = "amended"
			second, err := store.Publish(ctx, next, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Version > first.Version).To(BeTrue())

			current, err := store.Current(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Version).To(Equal(second.Version))
			Expect(current.Name).To(Equal("amended"))
		})
	})

	Describe("Publish", func() {
		It("should keep earlier snapshots untouched", func() {
			// Given
			published, err := store.Publish(ctx, hours.Default(), nil)
			Expect(err).NotTo(HaveOccurred())

			// When
			changed := hours.Default()
			changed.Activities.PerUnit["team_training"] = 999
			_, err = store.Publish(ctx, changed, nil)
			Expect(err).NotTo(HaveOccurred())

			// Then
			old, err := store.Get(ctx, published.Version)
			Expect(err).NotTo(HaveOccurred())
			Expect(old.Activities.PerUnit["team_training"]).To(Equal(75.0))
		})

		It("should not be affected by later edits to the input", func() {
			input := hours.Default()
			published, err := store.Publish(ctx, input, nil)
			Expect(err).NotTo(HaveOccurred())

			input.Activities.PerUnit["team_training"] = 1

			stored, err := store.Get(ctx, published.Version)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Activities.PerUnit["team_training"]).To(Equal(75.0))
		})

		It("should refuse invalid tables", func() {
			bad := hours.Default()
			bad.Name = ""
			_, err := store.Publish(ctx, bad, nil)
			Expect(err).To(HaveOccurred())
			Expect(mockRepo.rows).To(BeEmpty())
		})
	})

	Describe("Get", func() {
		It("should decode a stored snapshot once", func() {
			published, err := store.Publish(ctx, hours.Default(), nil)
			Expect(err).NotTo(HaveOccurred())

			fresh := hours.NewRuleStore(mockRepo, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
			_, err = fresh.Get(ctx, published.Version)
			Expect(err).NotTo(HaveOccurred())
			_, err = fresh.Get(ctx, published.Version)
			Expect(err).NotTo(HaveOccurred())
			Expect(mockRepo.gets).To(Equal(1))
		})
	})

	Describe("Bootstrap", func() {
		It("should publish the default table when the store is empty", func() {
			table, err := store.Bootstrap(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(table.Name).To(Equal(hours.Default().Name))
			Expect(mockRepo.rows).To(HaveLen(1))

			again, err := store.Bootstrap(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Version).To(Equal(table.Version))
			Expect(mockRepo.rows).To(HaveLen(1))
		})
	})

	Describe("Preview", func() {
		It("should compute hours without storing anything", func() {
			_, err := store.Publish(ctx, hours.Default(), nil)
			Expect(err).NotTo(HaveOccurred())

			res, err := store.Preview(ctx, hours.KindActivity, json.RawMessage(`{"type":"exhibition_product","quantity":2}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Hours).To(Equal(90.0))
			Expect(mockRepo.rows).To(HaveLen(1))
		})
	})
})

var _ = Describe("LoadFile", func() {
	It("should read a YAML rule table", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "rules.yml")
		content := `
name: test-rules
publications:
  base_hours:
    journal_rev: 900
  quartile_hours:
    Q1: 1800
  shared_fraction: 0.6666666667
  role_bonus:
    first: 0.1666666667
projects:
  levels:
    national:
      total: 1000
      leader: 500
      secretary: 250
      member_pool: 250
activities:
  per_unit:
    team_training: 75
  yearly_cap: 250
`
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		table, err := hours.LoadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Name).To(Equal("test-rules"))
		Expect(table.Publications.QuartileHours).To(HaveKeyWithValue("q1", 1800.0))
		Expect(table.Projects.Levels).To(HaveKey("national"))
		Expect(table.Activities.YearlyCap).To(Equal(250.0))
	})

	It("should fail for a missing file", func() {
		_, err := hours.LoadFile("/nonexistent/rules.yml")
		Expect(err).To(HaveOccurred())
	})
})
