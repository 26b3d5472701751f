package approval_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/approval"
	"github.com/frahmantamala/research-hours/internal/audit"
	auditPostgres "github.com/frahmantamala/research-hours/internal/audit/postgres"
	auditDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/audit"
	orgDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/orgunit"
	recordDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/record"
	ruleDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/ruletable"
	userDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/user"
	"github.com/frahmantamala/research-hours/internal/core/events"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/hours"
	hoursPostgres "github.com/frahmantamala/research-hours/internal/hours/postgres"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	orgPostgres "github.com/frahmantamala/research-hours/internal/orgunit/postgres"
	"github.com/frahmantamala/research-hours/internal/record"
	recordPostgres "github.com/frahmantamala/research-hours/internal/record/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// barrierRepository holds every reader until n of them have read, so racing
// transitions all start from the same version.
type barrierRepository struct {
	record.RepositoryAPI
	readers *sync.WaitGroup
}

func (b *barrierRepository) GetByID(ctx context.Context, id int64) (*record.Record, error) {
	rec, err := b.RepositoryAPI.GetByID(ctx, id)
	b.readers.Done()
	b.readers.Wait()
	return rec, err
}

var _ = Describe("Approval Service", func() {
	var (
		ctx        context.Context
		db         *gorm.DB
		lg         *slog.Logger
		bus        *events.EventBus
		recordRepo record.RepositoryAPI
		auditRepo  audit.RepositoryAPI
		orgService *orgunit.Service
		ruleStore  *hours.RuleStore
		service    *approval.Service
		records    *record.Service
		table      *hours.RuleTable
		clock      time.Time

		mu       sync.Mutex
		received []events.Event

		facultyID, deptID, officeID int64
		deptStaff, officeStaff      int64
		unassigned                  int64

		deptAdmin, facultyAdmin, uniAdmin identity.Actor
	)

	publicationDTO := func() record.CreateRecordDTO {
		return record.CreateRecordDTO{
			Kind:           hours.KindPublication,
			Title:          "Spin waves in thin films",
			Year:           2024,
			Classification: json.RawMessage(`{"type":"journal_wos_scopus","quartile":"Q1","author_role":"first_corresponding","total_authors":3}`),
		}
	}

	activityDTO := func() record.CreateRecordDTO {
		return record.CreateRecordDTO{
			Kind:           hours.KindActivity,
			Title:          "Student research supervision",
			Year:           2024,
			Classification: json.RawMessage(`{"type":"student_research_university","quantity":1}`),
		}
	}

	trail := func(id int64) []audit.Action {
		entries, err := auditRepo.ListByRecord(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		actions := make([]audit.Action, len(entries))
		for i, e := range entries {
			actions[i] = e.Action
		}
		return actions
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(
			&userDatamodel.User{},
			&orgDatamodel.OrgUnit{},
			&orgDatamodel.Department{},
			&orgDatamodel.AdminRole{},
			&recordDatamodel.Record{},
			&auditDatamodel.Entry{},
			&ruleDatamodel.Snapshot{},
		)).To(Succeed())

		faculty := &orgDatamodel.OrgUnit{Name: "Faculty of Science", Kind: "faculty", IsActive: true}
		office := &orgDatamodel.OrgUnit{Name: "Research Office", Kind: "office", IsActive: true}
		Expect(db.Create(faculty).Error).To(Succeed())
		Expect(db.Create(office).Error).To(Succeed())
		dept := &orgDatamodel.Department{Name: "Physics", FacultyID: faculty.ID, IsActive: true}
		Expect(db.Create(dept).Error).To(Succeed())
		facultyID, deptID, officeID = faculty.ID, dept.ID, office.ID

		newUser := func(email string, departmentID, orgUnitID *int64) int64 {
			u := &userDatamodel.User{Email: email, Name: email, PasswordHash: "x", DepartmentID: departmentID, OrgUnitID: orgUnitID, IsActive: true}
			Expect(db.Create(u).Error).To(Succeed())
			return u.ID
		}
		deptStaff = newUser("lecturer@uni.edu", &deptID, &facultyID)
		officeStaff = newUser("officer@uni.edu", nil, &officeID)
		unassigned = newUser("new@uni.edu", nil, nil)

		deptAdmin = identity.Actor{UserID: 900, Roles: []identity.AdminRole{{ScopeKind: identity.ScopeDepartment, ScopeID: &deptID, IsActive: true}}}
		facultyAdmin = identity.Actor{UserID: 901, Roles: []identity.AdminRole{{ScopeKind: identity.ScopeFaculty, ScopeID: &facultyID, IsActive: true}}}
		uniAdmin = identity.Actor{UserID: 902, Roles: []identity.AdminRole{{ScopeKind: identity.ScopeUniversity, IsActive: true}}}

		lg = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		ruleStore = hours.NewRuleStore(hoursPostgres.NewRuleTableRepository(db), lg)
		table, err = ruleStore.Publish(ctx, hours.Default(), nil)
		Expect(err).NotTo(HaveOccurred())

		received = nil
		bus = events.NewEventBus(lg)
		for _, t := range events.RecordEventTypes {
			bus.Subscribe(t, func(_ context.Context, e events.Event) error {
				mu.Lock()
				defer mu.Unlock()
				received = append(received, e)
				return nil
			})
		}

		clock = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
		recordRepo = recordPostgres.NewRecordRepository(db)
		auditRepo = auditPostgres.NewAuditRepository(db)
		orgService = orgunit.NewService(orgPostgres.NewOrgUnitRepository(db), lg)
		service = approval.NewService(recordRepo, auditRepo, orgService, ruleStore, bus, lg).
			WithClock(func() time.Time { return clock })
		records = record.NewService(recordRepo, service, lg)
	})

	AfterEach(func() {
		bus.Wait()
	})

	Describe("department staff walking all three stages", func() {
		It("should approve with computed hours after department, faculty and university review", func() {
			// Given
			rec, err := records.Create(ctx, deptStaff, publicationDTO())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Stage).To(Equal(orgunit.StageDepartmentReview))

			// When
			rec, err = service.Advance(ctx, deptAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Stage).To(Equal(orgunit.StageFacultyReview))
			Expect(rec.Status).To(Equal(record.StatusPending))

			rec, err = service.Advance(ctx, facultyAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Stage).To(Equal(orgunit.StageUniversityReview))

			rec, err = service.Advance(ctx, uniAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())

			// Then
			stored, err := recordRepo.GetByID(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(record.StatusApproved))
			Expect(*stored.Hours).To(Equal(1000.0))
			Expect(*stored.BaseHours).To(Equal(1800.0))
			Expect(*stored.RuleVersion).To(Equal(table.Version))
			Expect(*stored.ApprovalYear).To(Equal(2025))
			Expect(stored.Version).To(Equal(int64(4)))
			Expect(trail(rec.ID)).To(Equal([]audit.Action{audit.ActionSubmit, audit.ActionAdvance, audit.ActionAdvance, audit.ActionApprove}))

			bus.Wait()
			mu.Lock()
			defer mu.Unlock()
			Expect(received).To(HaveLen(4))
			Expect(received[len(received)-1].EventType()).To(Equal(events.EventTypeRecordApproved))
		})

		It("should never skip a stage, even for a university admin", func() {
			rec, err := records.Create(ctx, deptStaff, publicationDTO())
			Expect(err).NotTo(HaveOccurred())

			rec, err = service.Advance(ctx, uniAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Stage).To(Equal(orgunit.StageFacultyReview))
			Expect(rec.Status).To(Equal(record.StatusPending))
			Expect(rec.Hours).To(BeNil())
		})

		It("should refuse reviewers whose role does not match the current stage", func() {
			// Given
			rec, err := records.Create(ctx, deptStaff, publicationDTO())
			Expect(err).NotTo(HaveOccurred())

			// When
			_, err = service.Advance(ctx, facultyAdmin, rec.ID)

			// Then
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())
			stored, _ := recordRepo.GetByID(ctx, rec.ID)
			Expect(stored.Stage).To(Equal(orgunit.StageDepartmentReview))
			Expect(stored.Version).To(Equal(int64(1)))
			Expect(trail(rec.ID)).To(Equal([]audit.Action{audit.ActionSubmit}))
		})

		It("should refuse to advance a record stranded off the owner's new path", func() {
			// Given
			rec, err := records.Create(ctx, deptStaff, publicationDTO())
			Expect(err).NotTo(HaveOccurred())
			_, err = orgService.AssignUser(ctx, deptStaff, orgunit.AssignUserDTO{OfficeID: &officeID})
			Expect(err).NotTo(HaveOccurred())

			// When
			_, err = service.Advance(ctx, uniAdmin, rec.ID)

			// Then
			Expect(errors.IsConfigurationError(err)).To(BeTrue())
		})
	})

	Describe("office staff on the one-stage path", func() {
		It("should approve in a single university review", func() {
			rec, err := records.Create(ctx, officeStaff, activityDTO())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Stage).To(Equal(orgunit.StageUniversityReview))

			_, err = service.Advance(ctx, deptAdmin, rec.ID)
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())

			rec, err = service.Advance(ctx, uniAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Status).To(Equal(record.StatusApproved))
			Expect(*rec.Hours).To(Equal(75.0))
			Expect(trail(rec.ID)).To(Equal([]audit.Action{audit.ActionSubmit, audit.ActionApprove}))
		})

		It("should leave the record untouched when the classification has no rule entry", func() {
			// Given
			dto := activityDTO()
			dto.Classification = json.RawMessage(`{"type":"museum_tour","quantity":1}`)
			rec, err := records.Create(ctx, officeStaff, dto)
			Expect(err).NotTo(HaveOccurred())

			// When
			_, err = service.Advance(ctx, uniAdmin, rec.ID)

			// Then
			Expect(errors.IsUnclassifiedRecordError(err)).To(BeTrue())
			stored, _ := recordRepo.GetByID(ctx, rec.ID)
			Expect(stored.Status).To(Equal(record.StatusPending))
			Expect(stored.Hours).To(BeNil())
			Expect(stored.Version).To(Equal(int64(1)))
		})
	})

	Describe("users without an org assignment", func() {
		It("should not be able to submit", func() {
			_, err := records.Create(ctx, unassigned, activityDTO())
			Expect(errors.IsConfigurationError(err)).To(BeTrue())

			var count int64
			db.Model(&recordDatamodel.Record{}).Count(&count)
			Expect(count).To(BeZero())
		})
	})

	Describe("reject and resubmit", func() {
		var rec *record.Record

		BeforeEach(func() {
			var err error
			rec, err = records.Create(ctx, deptStaff, publicationDTO())
			Expect(err).NotTo(HaveOccurred())
			rec, err = service.Advance(ctx, deptAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should require a comment", func() {
			_, err := service.Reject(ctx, facultyAdmin, rec.ID, "   ")
			Expect(err).To(MatchError(errors.ErrCommentRequired))
		})

		It("should round-trip back to the first stage with the trail intact", func() {
			// When
			rejected, err := service.Reject(ctx, facultyAdmin, rec.ID, "DOI does not resolve")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(record.StatusRejected))
			Expect(rejected.Stage).To(Equal(orgunit.StageFacultyReview))
			Expect(*rejected.RejectionReason).To(Equal("DOI does not resolve"))

			_, err = service.Advance(ctx, facultyAdmin, rec.ID)
			Expect(err).To(MatchError(errors.ErrInvalidTransition))

			_, err = service.Resubmit(ctx, facultyAdmin, rec.ID)
			Expect(err).To(MatchError(errors.ErrNotOwner))

			resubmitted, err := service.Resubmit(ctx, identity.Actor{UserID: deptStaff}, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resubmitted.Status).To(Equal(record.StatusPending))
			Expect(resubmitted.Stage).To(Equal(orgunit.StageDepartmentReview))
			Expect(resubmitted.RejectionReason).To(BeNil())

			entries, err := service.History(ctx, identity.Actor{UserID: deptStaff}, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(4))
			Expect(entries[2].Action).To(Equal(audit.ActionReject))
			Expect(entries[2].Comment).To(Equal("DOI does not resolve"))
			Expect(entries[3].Action).To(Equal(audit.ActionResubmit))
		})

		It("should only allow resubmitting rejected records", func() {
			_, err := service.Resubmit(ctx, identity.Actor{UserID: deptStaff}, rec.ID)
			Expect(err).To(MatchError(errors.ErrInvalidTransition))
		})
	})

	Describe("reopen", func() {
		var rec *record.Record

		BeforeEach(func() {
			var err error
			rec, err = records.Create(ctx, officeStaff, activityDTO())
			Expect(err).NotTo(HaveOccurred())
			rec, err = service.Advance(ctx, uniAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should keep stored hours when a newer rule table is published", func() {
			// Given
			revised := hours.Default()
			revised.Name = "revised"
			revised.Activities.PerUnit["student_research_university"] = 90
			_, err := ruleStore.Publish(ctx, revised, nil)
			Expect(err).NotTo(HaveOccurred())

			// Then
			stored, _ := recordRepo.GetByID(ctx, rec.ID)
			Expect(*stored.Hours).To(Equal(75.0))
			Expect(*stored.RuleVersion).To(Equal(table.Version))
		})

		It("should be reserved to university admins and require a comment", func() {
			_, err := service.Reopen(ctx, facultyAdmin, rec.ID, "recount")
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())

			_, err = service.Reopen(ctx, uniAdmin, rec.ID, "")
			Expect(err).To(HaveOccurred())
		})

		It("should clear hours and recompute with the current table on re-approval", func() {
			// Given
			revised := hours.Default()
			revised.Activities.PerUnit["student_research_university"] = 90
			newTable, err := ruleStore.Publish(ctx, revised, nil)
			Expect(err).NotTo(HaveOccurred())

			// When
			reopened, err := service.Reopen(ctx, uniAdmin, rec.ID, "supervision count was wrong")
			Expect(err).NotTo(HaveOccurred())
			Expect(reopened.Status).To(Equal(record.StatusPending))
			Expect(reopened.Stage).To(Equal(orgunit.StageUniversityReview))
			Expect(reopened.Hours).To(BeNil())
			Expect(reopened.ApprovalYear).To(BeNil())

			approved, err := service.Advance(ctx, uniAdmin, rec.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(*approved.Hours).To(Equal(90.0))
			Expect(*approved.RuleVersion).To(Equal(newTable.Version))
			Expect(trail(rec.ID)).To(Equal([]audit.Action{audit.ActionSubmit, audit.ActionApprove, audit.ActionReopen, audit.ActionApprove}))
		})

		It("should refuse to reject an approved record and leave it unchanged", func() {
			// Given
			before, err := recordRepo.GetByID(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(before.Status).To(Equal(record.StatusApproved))

			// When
			_, err = service.Reject(ctx, uniAdmin, rec.ID, "late objection")

			// Then
			Expect(err).To(MatchError(errors.ErrInvalidTransition))
			after, err := recordRepo.GetByID(ctx, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Status).To(Equal(record.StatusApproved))
			Expect(after.Version).To(Equal(before.Version))
			Expect(*after.Hours).To(Equal(75.0))
			Expect(*after.RuleVersion).To(Equal(table.Version))
			Expect(*after.ApprovalYear).To(Equal(2025))
			Expect(after.RejectionReason).To(BeNil())
			Expect(trail(rec.ID)).To(Equal([]audit.Action{audit.ActionSubmit, audit.ActionApprove}))
		})

		It("should refuse to reopen a pending record", func() {
			_, err := service.Reopen(ctx, uniAdmin, rec.ID, "again")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Reopen(ctx, uniAdmin, rec.ID, "again")
			Expect(err).To(MatchError(errors.ErrInvalidTransition))
		})
	})

	Describe("concurrent reviewers", func() {
		It("should let exactly one of two simultaneous approvals win", func() {
			// Given
			rec, err := records.Create(ctx, officeStaff, activityDTO())
			Expect(err).NotTo(HaveOccurred())

			var readers sync.WaitGroup
			readers.Add(2)
			racing := approval.NewService(&barrierRepository{RepositoryAPI: recordRepo, readers: &readers}, auditRepo, orgService, ruleStore, nil, lg)

			// When
			results := make(chan error, 2)
			for i := 0; i < 2; i++ {
				go func() {
					defer GinkgoRecover()
					_, err := racing.Advance(ctx, uniAdmin, rec.ID)
					results <- err
				}()
			}
			errs := []error{<-results, <-results}

			// Then
			var ok, conflicts int
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.IsConcurrentModificationError(err):
					conflicts++
				}
			}
			Expect(ok).To(Equal(1))
			Expect(conflicts).To(Equal(1))
			Expect(trail(rec.ID)).To(Equal([]audit.Action{audit.ActionSubmit, audit.ActionApprove}))
		})
	})

	Describe("ListPending", func() {
		It("should show each reviewer only the records they may act on", func() {
			deptRec, err := records.Create(ctx, deptStaff, publicationDTO())
			Expect(err).NotTo(HaveOccurred())
			officeRec, err := records.Create(ctx, officeStaff, activityDTO())
			Expect(err).NotTo(HaveOccurred())

			mine, err := service.ListPending(ctx, deptAdmin, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(1))
			Expect(mine[0].ID).To(Equal(deptRec.ID))

			mine, err = service.ListPending(ctx, facultyAdmin, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(BeEmpty())

			mine, err = service.ListPending(ctx, uniAdmin, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(2))
			Expect([]int64{mine[0].ID, mine[1].ID}).To(ConsistOf(deptRec.ID, officeRec.ID))

			mine, err = service.ListPending(ctx, identity.Actor{UserID: deptStaff}, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(BeEmpty())
		})
	})

	Describe("History", func() {
		It("should hide the trail from actors outside the owner's scope", func() {
			rec, err := records.Create(ctx, officeStaff, activityDTO())
			Expect(err).NotTo(HaveOccurred())

			_, err = service.History(ctx, deptAdmin, rec.ID)
			Expect(errors.IsAuthorizationError(err)).To(BeTrue())

			entries, err := service.History(ctx, uniAdmin, rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})
	})
})
