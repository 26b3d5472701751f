package hours

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/frahmantamala/research-hours/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Current(ctx context.Context) (*RuleTable, error)
	Get(ctx context.Context, version string) (*RuleTable, error)
	List(ctx context.Context) ([]SnapshotInfo, error)
	Preview(ctx context.Context, kind Kind, raw json.RawMessage) (Result, error)
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

func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	table, err := h.Service.Current(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, table)
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	table, err := h.Service.Get(r.Context(), version)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, table)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.Service.List(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RuleTablesResponse{RuleTables: tables})
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var dto PreviewDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	result, err := h.Service.Preview(r.Context(), Kind(dto.Kind), dto.Classification)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
