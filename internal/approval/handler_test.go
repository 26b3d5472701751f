package approval_test

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/approval"
	"github.com/frahmantamala/research-hours/internal/audit"
	"github.com/frahmantamala/research-hours/internal/auth"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	"github.com/frahmantamala/research-hours/internal/record"
	"github.com/frahmantamala/research-hours/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockApprovalService implements approval.ServiceAPI for handler tests
type mockApprovalService struct {
	err       error
	calls     int
	lastActor identity.Actor
	lastID    int64
	comment   string
}

func (m *mockApprovalService) result(actor identity.Actor, id int64) (*record.Record, error) {
	m.calls++
	m.lastActor = actor
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return &record.Record{ID: id, Stage: orgunit.StageFacultyReview, Status: record.StatusPending, Version: 2}, nil
}

func (m *mockApprovalService) Advance(_ context.Context, actor identity.Actor, id int64) (*record.Record, error) {
	return m.result(actor, id)
}

func (m *mockApprovalService) Reject(_ context.Context, actor identity.Actor, id int64, comment string) (*record.Record, error) {
	m.comment = comment
	return m.result(actor, id)
}

func (m *mockApprovalService) Resubmit(_ context.Context, actor identity.Actor, id int64) (*record.Record, error) {
	return m.result(actor, id)
}

func (m *mockApprovalService) Reopen(_ context.Context, actor identity.Actor, id int64, comment string) (*record.Record, error) {
	m.comment = comment
	return m.result(actor, id)
}

func (m *mockApprovalService) ListPending(_ context.Context, actor identity.Actor, _, _ int) ([]*record.Record, error) {
	m.calls++
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return []*record.Record{{ID: 7, Status: record.StatusPending}}, nil
}

func (m *mockApprovalService) History(_ context.Context, actor identity.Actor, id int64) ([]*audit.Entry, error) {
	m.calls++
	m.lastActor = actor
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return []*audit.Entry{{ID: 1, RecordID: id, Action: audit.ActionSubmit}}, nil
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Errors []struct {
				Field string `json:"field"`
				Code  string `json:"code"`
			} `json:"errors"`
		} `json:"details"`
	} `json:"error"`
}

var _ = Describe("Approval Handler", func() {
	var (
		service  *mockApprovalService
		router   *chi.Mux
		reviewer *auth.User
	)

	BeforeEach(func() {
		service = &mockApprovalService{}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler := approval.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		router = chi.NewRouter()
		router.Post("/records/{id}/advance", handler.Advance)
		router.Post("/records/{id}/reject", handler.Reject)
		router.Post("/records/{id}/resubmit", handler.Resubmit)
		router.Post("/records/{id}/reopen", handler.Reopen)
		router.Get("/records/{id}/audit", handler.History)
		router.Get("/approvals/pending", handler.ListPending)

		reviewer = &auth.User{ID: 42, Email: "registrar@uni.edu", Roles: []identity.AdminRole{{ScopeKind: identity.ScopeUniversity, IsActive: true}}}
	})

	serve := func(method, path string, body interface{}, user *auth.User) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if user != nil {
			req = req.WithContext(auth.WithUser(req.Context(), user))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeError := func(w *httptest.ResponseRecorder) errorBody {
		var body errorBody
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		return body
	}

	Describe("POST /records/{id}/advance", func() {
		It("should pass the caller as an explicit actor and return the record", func() {
			w := serve(http.MethodPost, "/records/15/advance", nil, reviewer)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(service.lastID).To(Equal(int64(15)))
			Expect(service.lastActor.UserID).To(Equal(int64(42)))
			Expect(service.lastActor.IsUniversityAdmin()).To(BeTrue())

			var rec record.Record
			Expect(json.NewDecoder(w.Body).Decode(&rec)).To(Succeed())
			Expect(rec.ID).To(Equal(int64(15)))
			Expect(rec.Stage).To(Equal(orgunit.StageFacultyReview))
		})

		It("should answer 401 without an authenticated user", func() {
			w := serve(http.MethodPost, "/records/15/advance", nil, nil)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(service.calls).To(BeZero())
		})

		It("should answer 400 for a malformed id", func() {
			w := serve(http.MethodPost, "/records/abc/advance", nil, reviewer)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(service.calls).To(BeZero())
		})

		DescribeTable("should map service errors to their status",
			func(err error, status int, errType errors.ErrorType, code errors.ErrorCode) {
				// Given
				service.err = err

				// When
				w := serve(http.MethodPost, "/records/15/advance", nil, reviewer)

				// Then
				Expect(w.Code).To(Equal(status))
				body := decodeError(w)
				Expect(body.Error.Type).To(Equal(string(errType)))
				Expect(body.Error.Code).To(Equal(string(code)))
				Expect(body.Error.Message).NotTo(BeEmpty())
			},
			Entry("authorization", errors.ErrNotAuthorized, http.StatusForbidden, errors.ErrorTypeForbidden, errors.ErrCodeNotAuthorized),
			Entry("concurrent modification", errors.ErrConcurrentModification, http.StatusConflict, errors.ErrorTypeConflict, errors.ErrCodeConcurrentUpdate),
			Entry("missing org assignment", errors.ErrMissingOrgAssignment, http.StatusUnprocessableEntity, errors.ErrorTypeConfiguration, errors.ErrCodeMissingOrgAssignment),
			Entry("missing rule table", errors.ErrRuleTableMissing, http.StatusUnprocessableEntity, errors.ErrorTypeConfiguration, errors.ErrCodeRuleTableMissing),
			Entry("unclassified record", errors.ErrUnclassifiedRecord, http.StatusUnprocessableEntity, errors.ErrorTypeUnclassified, errors.ErrCodeUnclassifiedRecord),
			Entry("invalid transition", errors.ErrInvalidTransition.WithMessage("record 15 is approved"), http.StatusConflict, errors.ErrorTypeConflict, errors.ErrCodeInvalidTransition),
			Entry("not found", errors.ErrRecordNotFound, http.StatusNotFound, errors.ErrorTypeNotFound, errors.ErrCodeRecordNotFound),
		)

		It("should hide unexpected errors behind a 500", func() {
			service.err = stdErrors.New("pq: connection reset")

			w := serve(http.MethodPost, "/records/15/advance", nil, reviewer)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).NotTo(ContainSubstring("connection reset"))
		})
	})

	Describe("POST /records/{id}/reject", func() {
		It("should forward the comment", func() {
			w := serve(http.MethodPost, "/records/15/reject", map[string]string{"comment": "DOI does not resolve"}, reviewer)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(service.comment).To(Equal("DOI does not resolve"))
		})

		It("should answer 400 when the comment is missing", func() {
			// When
			w := serve(http.MethodPost, "/records/15/reject", map[string]string{"comment": "  "}, reviewer)

			// Then
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			body := decodeError(w)
			Expect(body.Error.Type).To(Equal(string(errors.ErrorTypeValidation)))
			Expect(body.Error.Details.Errors).To(HaveLen(1))
			Expect(body.Error.Details.Errors[0].Field).To(Equal("comment"))
			Expect(body.Error.Details.Errors[0].Code).To(Equal(string(errors.ErrCodeCommentRequired)))
			Expect(service.calls).To(BeZero())
		})

		It("should answer 400 for a body that is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/records/15/reject", bytes.NewBufferString("comment=late"))
			req = req.WithContext(auth.WithUser(req.Context(), reviewer))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(service.calls).To(BeZero())
		})

		It("should answer 409 when the record is no longer pending", func() {
			service.err = errors.ErrInvalidTransition

			w := serve(http.MethodPost, "/records/15/reject", map[string]string{"comment": "late objection"}, reviewer)

			Expect(w.Code).To(Equal(http.StatusConflict))
			Expect(decodeError(w).Error.Code).To(Equal(string(errors.ErrCodeInvalidTransition)))
		})
	})

	Describe("POST /records/{id}/reopen", func() {
		It("should answer 400 when the comment is missing", func() {
			w := serve(http.MethodPost, "/records/15/reopen", map[string]string{}, reviewer)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(w).Error.Details.Errors[0].Code).To(Equal(string(errors.ErrCodeCommentRequired)))
			Expect(service.calls).To(BeZero())
		})

		It("should answer 403 for reviewers below university scope", func() {
			service.err = errors.ErrNotAuthorized

			w := serve(http.MethodPost, "/records/15/reopen", map[string]string{"comment": "recount"}, reviewer)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(service.comment).To(Equal("recount"))
		})
	})

	Describe("POST /records/{id}/resubmit", func() {
		It("should answer 403 when the caller is not the owner", func() {
			service.err = errors.ErrNotOwner

			w := serve(http.MethodPost, "/records/15/resubmit", nil, reviewer)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(decodeError(w).Error.Code).To(Equal(string(errors.ErrCodeNotOwner)))
		})
	})

	Describe("GET /records/{id}/audit", func() {
		It("should return the trail for the record", func() {
			w := serve(http.MethodGet, "/records/15/audit", nil, reviewer)

			Expect(w.Code).To(Equal(http.StatusOK))
			var body approval.HistoryResponse
			Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
			Expect(body.RecordID).To(Equal(int64(15)))
			Expect(body.Entries).To(HaveLen(1))
		})
	})

	Describe("GET /approvals/pending", func() {
		It("should page the queue with defaults", func() {
			w := serve(http.MethodGet, "/approvals/pending", nil, reviewer)

			Expect(w.Code).To(Equal(http.StatusOK))
			var body approval.PendingResponse
			Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
			Expect(body.Records).To(HaveLen(1))
			Expect(body.Limit).To(BeNumerically(">", 0))
			Expect(service.lastActor.UserID).To(Equal(int64(42)))
		})

		It("should answer 401 without an authenticated user", func() {
			w := serve(http.MethodGet, "/approvals/pending", nil, nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
