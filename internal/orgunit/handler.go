package orgunit

import (
	"context"
	"net/http"

	"github.com/frahmantamala/research-hours/internal/auth"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/transport"
)

type ServiceAPI interface {
	ListOrgUnits(ctx context.Context) ([]*OrgUnit, error)
	ListDepartments(ctx context.Context, facultyID int64) ([]*Department, error)
	CreateOrgUnit(ctx context.Context, dto CreateOrgUnitDTO) (*OrgUnit, error)
	CreateDepartment(ctx context.Context, facultyID int64, dto CreateDepartmentDTO) (*Department, error)
	AssignUser(ctx context.Context, userID int64, dto AssignUserDTO) (*Assignment, error)
	GrantRole(ctx context.Context, grantor identity.Actor, userID int64, dto GrantRoleDTO) (*identity.AdminRole, error)
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

func (h *Handler) ListOrgUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Service.ListOrgUnits(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, OrgUnitsResponse{OrgUnits: units})
}

func (h *Handler) CreateOrgUnit(w http.ResponseWriter, r *http.Request) {
	var dto CreateOrgUnitDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	unit, err := h.Service.CreateOrgUnit(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, unit)
}

func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	facultyID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	depts, err := h.Service.ListDepartments(r.Context(), facultyID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"departments": depts})
}

func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	facultyID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto CreateDepartmentDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	dept, err := h.Service.CreateDepartment(r.Context(), facultyID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, dept)
}

func (h *Handler) AssignUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto AssignUserDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	assignment, err := h.Service.AssignUser(r.Context(), userID, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, assignment)
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	grantor, ok := auth.UserFromContext(r.Context())
	if !ok || grantor == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	userID, ok := h.IDParam(w, r, "id")
	if !ok {
		return
	}

	var dto GrantRoleDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	role, err := h.Service.GrantRole(r.Context(), grantor.Actor(), userID, dto)
	if err != nil {
		h.Logger.Warn("GrantRole: service error", "error", err, "grantor_id", grantor.ID, "user_id", userID)
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, role)
}
