package report

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/research-hours/internal/auth"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/transport"
)

type ServiceAPI interface {
	Report(ctx context.Context, actor identity.Actor, scope Scope, year int) (*Report, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// GetReport answers GET /reports?scope=&scope_id=&year=. Scope defaults to
// the caller's own hours and year to the current year.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	scope := Scope{Kind: ScopeKind(q.Get("scope"))}
	if scope.Kind == "" {
		scope = Scope{Kind: ScopeUser, ID: user.ID}
	}
	if raw := q.Get("scope_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid scope_id")
			return
		}
		scope.ID = id
	}

	year := time.Now().Year()
	if raw := q.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}

	rep, err := h.Service.Report(r.Context(), user.Actor(), scope, year)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rep)
}
