package report_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/auth"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/report"
	"github.com/frahmantamala/research-hours/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockReportService struct {
	err   error
	actor identity.Actor
	scope report.Scope
	year  int
}

func (m *mockReportService) Report(_ context.Context, actor identity.Actor, scope report.Scope, year int) (*report.Report, error) {
	m.actor, m.scope, m.year = actor, scope, year
	if m.err != nil {
		return nil, m.err
	}
	return &report.Report{Scope: scope, Year: year, Total: 600}, nil
}

var _ = Describe("Report Handler", func() {
	var (
		service *mockReportService
		handler *report.Handler
		user    *auth.User
	)

	BeforeEach(func() {
		service = &mockReportService{}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = report.NewHandler(&transport.BaseHandler{Logger: slogger}, service)
		user = &auth.User{ID: 100, Email: "an@uni.edu"}
	})

	get := func(target string, u *auth.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if u != nil {
			req = req.WithContext(auth.WithUser(req.Context(), u))
		}
		w := httptest.NewRecorder()
		handler.GetReport(w, req)
		return w
	}

	It("should default to the caller's own hours this year", func() {
		w := get("/reports", user)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(service.scope).To(Equal(report.Scope{Kind: report.ScopeUser, ID: 100}))
		Expect(service.year).To(Equal(time.Now().Year()))
		Expect(service.actor.UserID).To(Equal(int64(100)))

		var rep report.Report
		Expect(json.NewDecoder(w.Body).Decode(&rep)).To(Succeed())
		Expect(rep.Total).To(Equal(600.0))
	})

	It("should pass scope, id and year through", func() {
		w := get("/reports?scope=faculty&scope_id=3&year=2024", user)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(service.scope).To(Equal(report.Scope{Kind: report.ScopeFaculty, ID: 3}))
		Expect(service.year).To(Equal(2024))
	})

	It("should answer 400 for a year that is not a number", func() {
		w := get("/reports?year=last", user)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("should answer 403 for scopes outside the caller's roles", func() {
		service.err = errors.ErrNotAuthorized.WithMessage("not allowed to read this scope")

		w := get("/reports?scope=university", user)

		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("should answer 422 when no rule table has been published", func() {
		service.err = errors.ErrRuleTableMissing

		w := get("/reports", user)

		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	It("should answer 401 without an authenticated user", func() {
		w := get("/reports", nil)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
