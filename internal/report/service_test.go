package report_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/core/events"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/hours"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	"github.com/frahmantamala/research-hours/internal/report"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

// MockRepository implements report.RepositoryAPI for testing
type MockRepository struct {
	rows    []report.Row
	calls   int32
	release chan struct{}
}

func (m *MockRepository) ApprovedRows(ctx context.Context, _ report.Scope, _ int) ([]report.Row, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.rows, nil
}

type staticRules struct{ table *hours.RuleTable }

func (s staticRules) Current(context.Context) (*hours.RuleTable, error) { return s.table, nil }

type departments map[int64]*orgunit.Department

func (d departments) Department(_ context.Context, id int64) (*orgunit.Department, error) {
	dept, ok := d[id]
	if !ok {
		return nil, errors.ErrDepartmentNotFound
	}
	return dept, nil
}

var _ = Describe("Report Service", func() {
	var (
		ctx     context.Context
		repo    *MockRepository
		service *report.Service
		lg      *slog.Logger
		rules   staticRules
		depts   departments
	)

	uniAdmin := identity.Actor{UserID: 1, Roles: []identity.AdminRole{{ScopeKind: identity.ScopeUniversity, IsActive: true}}}

	BeforeEach(func() {
		ctx = context.Background()
		table := hours.Default()
		table.Normalize()
		table.Version = "01JREPORTTABLE0000000000000"
		rules = staticRules{table: table}
		repo = &MockRepository{rows: []report.Row{
			{RecordID: 1, OwnerID: 100, OwnerName: "An", DepartmentID: int64Ptr(11), OrgUnitID: int64Ptr(1), Kind: "publication", Hours: floatPtr(600)},
		}}
		depts = departments{11: {ID: 11, Name: "Physics", FacultyID: 1}}
		lg = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = report.NewService(repo, rules, depts, lg)
	})

	Describe("access", func() {
		It("should let anyone read their own hours", func() {
			rep, err := service.Report(ctx, identity.Actor{UserID: 100}, report.Scope{Kind: report.ScopeUser, ID: 100}, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Total).To(Equal(600.0))
		})

		It("should hide other users' hours from non-admins", func() {
			_, err := service.Report(ctx, identity.Actor{UserID: 100}, report.Scope{Kind: report.ScopeUser, ID: 101}, 2025)
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())
		})

		It("should let a faculty admin open a department inside the faculty", func() {
			actor := identity.Actor{UserID: 5, Roles: []identity.AdminRole{{ScopeKind: identity.ScopeFaculty, ScopeID: int64Ptr(1), IsActive: true}}}

			_, err := service.Report(ctx, actor, report.Scope{Kind: report.ScopeDepartment, ID: 11}, 2025)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Report(ctx, actor, report.Scope{Kind: report.ScopeFaculty, ID: 2}, 2025)
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())
		})

		It("should keep department admins inside their department", func() {
			actor := identity.Actor{UserID: 6, Roles: []identity.AdminRole{{ScopeKind: identity.ScopeDepartment, ScopeID: int64Ptr(11), IsActive: true}}}

			_, err := service.Report(ctx, actor, report.Scope{Kind: report.ScopeDepartment, ID: 11}, 2025)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Report(ctx, actor, report.Scope{Kind: report.ScopeUniversity}, 2025)
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())
		})
	})

	Describe("request collapsing", func() {
		It("should compute identical concurrent reports once", func() {
			// Given
			repo.release = make(chan struct{})
			const callers = 5
			var wg sync.WaitGroup
			results := make([]*report.Report, callers)

			// When
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					rep, err := service.Report(ctx, uniAdmin, report.Scope{Kind: report.ScopeUniversity}, 2025)
					Expect(err).NotTo(HaveOccurred())
					results[i] = rep
				}(i)
			}
			Eventually(func() int32 { return atomic.LoadInt32(&repo.calls) }).Should(Equal(int32(1)))
			time.Sleep(50 * time.Millisecond)
			close(repo.release)
			wg.Wait()

			// Then
			Expect(atomic.LoadInt32(&repo.calls)).To(Equal(int32(1)))
			for _, rep := range results {
				Expect(rep).To(BeIdenticalTo(results[0]))
			}
		})
	})

	Describe("request collapsing with a cancelled caller", func() {
		It("should finish the shared build for the callers still waiting", func() {
			// Given the first caller starts the build and then goes away
			repo.release = make(chan struct{})
			firstCtx, cancel := context.WithCancel(ctx)
			firstDone := make(chan error, 1)
			go func() {
				_, err := service.Report(firstCtx, uniAdmin, report.Scope{Kind: report.ScopeUniversity}, 2025)
				firstDone <- err
			}()
			Eventually(func() int32 { return atomic.LoadInt32(&repo.calls) }).Should(Equal(int32(1)))

			secondDone := make(chan *report.Report, 1)
			go func() {
				defer GinkgoRecover()
				rep, err := service.Report(ctx, uniAdmin, report.Scope{Kind: report.ScopeUniversity}, 2025)
				Expect(err).NotTo(HaveOccurred())
				secondDone <- rep
			}()
			time.Sleep(50 * time.Millisecond)
			cancel()

			// When the repository answers
			close(repo.release)

			// Then the waiting caller gets the report
			var rep *report.Report
			Eventually(secondDone).Should(Receive(&rep))
			Expect(rep.Total).To(Equal(600.0))
			Eventually(firstDone).Should(Receive(BeNil()))
			Expect(atomic.LoadInt32(&repo.calls)).To(Equal(int32(1)))
		})
	})

	Describe("redis cache", func() {
		var (
			mr     *miniredis.Miniredis
			client *redis.Client
			bus    *events.EventBus
		)

		BeforeEach(func() {
			mr = miniredis.RunT(GinkgoT())
			client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			service.WithCache(report.NewRedisCache(client, time.Minute))

			bus = events.NewEventBus(lg)
			report.NewEventHandler(service, lg).RegisterEventHandlers(bus)
		})

		AfterEach(func() {
			_ = client.Close()
		})

		It("should serve repeated reports from the cache", func() {
			first, err := service.Aggregate(ctx, report.Scope{Kind: report.ScopeUniversity}, 2025)
			Expect(err).NotTo(HaveOccurred())

			second, err := service.Aggregate(ctx, report.Scope{Kind: report.ScopeUniversity}, 2025)
			Expect(err).NotTo(HaveOccurred())

			Expect(atomic.LoadInt32(&repo.calls)).To(Equal(int32(1)))
			Expect(second.Total).To(Equal(first.Total))
			Expect(second.RuleVersion).To(Equal(first.RuleVersion))
		})

		It("should recompute after an approval event", func() {
			_, err := service.Aggregate(ctx, report.Scope{Kind: report.ScopeUniversity}, 2025)
			Expect(err).NotTo(HaveOccurred())

			// When
			ev := events.NewRecordTransitionedEvent(events.EventTypeRecordApproved, events.RecordTransition{RecordID: 2, OwnerID: 100, Status: "approved"})
			Expect(bus.Publish(ctx, ev)).To(Succeed())
			bus.Wait()

			_, err = service.Aggregate(ctx, report.Scope{Kind: report.ScopeUniversity}, 2025)
			Expect(err).NotTo(HaveOccurred())

			// Then
			Expect(atomic.LoadInt32(&repo.calls)).To(Equal(int32(2)))
		})

		It("should keep working when redis goes away", func() {
			mr.Close()

			rep, err := service.Aggregate(ctx, report.Scope{Kind: report.ScopeUser, ID: 100}, 2025)
			Expect(err).NotTo(HaveOccurred())
			Expect(rep.Total).To(Equal(600.0))
		})
	})
})
