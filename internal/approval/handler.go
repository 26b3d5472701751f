package approval

import (
	"context"
	"net/http"

	"github.com/frahmantamala/research-hours/internal/audit"
	"github.com/frahmantamala/research-hours/internal/auth"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/record"
	"github.com/frahmantamala/research-hours/internal/transport"
)

type ServiceAPI interface {
	Advance(ctx context.Context, actor identity.Actor, recordID int64) (*record.Record, error)
	Reject(ctx context.Context, actor identity.Actor, recordID int64, comment string) (*record.Record, error)
	Resubmit(ctx context.Context, actor identity.Actor, recordID int64) (*record.Record, error)
	Reopen(ctx context.Context, actor identity.Actor, recordID int64, comment string) (*record.Record, error)
	ListPending(ctx context.Context, actor identity.Actor, limit, offset int) ([]*record.Record, error)
	History(ctx context.Context, actor identity.Actor, recordID int64) ([]*audit.Entry, error)
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

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndRecord(w, r)
	if !ok {
		return
	}

	rec, err := h.Service.Advance(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndRecord(w, r)
	if !ok {
		return
	}

	var dto CommentDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	rec, err := h.Service.Reject(r.Context(), actor, id, dto.Comment)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) Resubmit(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndRecord(w, r)
	if !ok {
		return
	}

	rec, err := h.Service.Resubmit(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndRecord(w, r)
	if !ok {
		return
	}

	var dto CommentDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	rec, err := h.Service.Reopen(r.Context(), actor, id, dto.Comment)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := record.NormalizePage(h.PageParams(r))
	records, err := h.Service.ListPending(r.Context(), user.Actor(), limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PendingResponse{Records: records, Limit: limit, Offset: offset})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndRecord(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.History(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, HistoryResponse{RecordID: id, Entries: entries})
}

func (h *Handler) actorAndRecord(w http.ResponseWriter, r *http.Request) (identity.Actor, int64, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return identity.Actor{}, 0, false
	}
	id, ok := h.IDParam(w, r, "id")
	if !ok {
		return identity.Actor{}, 0, false
	}
	return user.Actor(), id, true
}
