package record

import (
	"context"
	"net/http"

	"github.com/frahmantamala/research-hours/internal/auth"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, ownerID int64, dto CreateRecordDTO) (*Record, error)
	Get(ctx context.Context, actor identity.Actor, id int64) (*Record, error)
	ListMine(ctx context.Context, ownerID int64, limit, offset int) ([]*Record, error)
	Update(ctx context.Context, actor identity.Actor, id int64, dto UpdateRecordDTO) (*Record, error)
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

func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateRecordDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	rec, err := h.Service.Create(r.Context(), user.ID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("CreateRecord: record submitted", "record_id", rec.ID, "user_id", user.ID, "stage", rec.Stage)
	h.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := NormalizePage(h.PageParams(r))
	records, err := h.Service.ListMine(r.Context(), user.ID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, RecordsResponse{Records: records, Limit: limit, Offset: offset})
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	rec, err := h.Service.Get(r.Context(), user.Actor(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto UpdateRecordDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	rec, err := h.Service.Update(r.Context(), user.Actor(), id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}
