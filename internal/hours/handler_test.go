package hours_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/hours"
	"github.com/frahmantamala/research-hours/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockRuleService struct {
	err     error
	version string
	calls   int
}

func (m *mockRuleService) Current(context.Context) (*hours.RuleTable, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return hours.Default(), nil
}

func (m *mockRuleService) Get(_ context.Context, version string) (*hours.RuleTable, error) {
	m.calls++
	m.version = version
	if m.err != nil {
		return nil, m.err
	}
	return hours.Default(), nil
}

func (m *mockRuleService) List(context.Context) ([]hours.SnapshotInfo, error) {
	m.calls++
	return []hours.SnapshotInfo{{Version: "01JTABLE", Name: "QD-2706-DHCN"}}, m.err
}

func (m *mockRuleService) Preview(_ context.Context, kind hours.Kind, raw json.RawMessage) (hours.Result, error) {
	m.calls++
	if m.err != nil {
		return hours.Result{}, m.err
	}
	return hours.Result{Hours: 75}, nil
}

var _ = Describe("Rules Handler", func() {
	var (
		service *mockRuleService
		router  *chi.Mux
	)

	BeforeEach(func() {
		service = &mockRuleService{}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler := hours.NewHandler(&transport.BaseHandler{Logger: slogger}, service)
		router = chi.NewRouter()
		router.Get("/rules", handler.List)
		router.Get("/rules/current", handler.GetCurrent)
		router.Get("/rules/{version}", handler.GetVersion)
		router.Post("/rules/preview", handler.Preview)
	})

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("should preview hours for a classification", func() {
		w := serve(http.MethodPost, "/rules/preview", `{"kind":"activity","classification":{"type":"team_training","quantity":1}}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		var result hours.Result
		Expect(json.NewDecoder(w.Body).Decode(&result)).To(Succeed())
		Expect(result.Hours).To(Equal(75.0))
	})

	It("should answer 422 for a classification the table does not cover", func() {
		service.err = errors.ErrUnclassifiedRecord

		w := serve(http.MethodPost, "/rules/preview", `{"kind":"activity","classification":{"type":"museum_tour","quantity":1}}`)

		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	It("should answer 400 for an unknown kind without calling the service", func() {
		w := serve(http.MethodPost, "/rules/preview", `{"kind":"poem","classification":{}}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(service.calls).To(BeZero())
	})

	It("should answer 422 when nothing has been published", func() {
		service.err = errors.ErrRuleTableMissing

		w := serve(http.MethodGet, "/rules/current", "")

		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
	})

	It("should look up a version from the path", func() {
		service.err = errors.ErrRuleTableNotFound

		w := serve(http.MethodGet, "/rules/01JMISSING", "")

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(service.version).To(Equal("01JMISSING"))
	})
})
