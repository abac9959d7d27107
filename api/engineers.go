package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/resource/internal/assignment"
	"github.com/garnizeh/resource/internal/capacity"
	"github.com/garnizeh/resource/pkg/models"
	"github.com/garnizeh/resource/pkg/repository"
)

type EngineersHandler struct {
	engineerRepo   repository.EngineerRepo
	assignmentRepo repository.AssignmentRepo
	coordinator    *assignment.Coordinator
	validator      *validator
}

func NewEngineersHandler(er repository.EngineerRepo, ar repository.AssignmentRepo, c *assignment.Coordinator, v *validator) *EngineersHandler {
	return &EngineersHandler{engineerRepo: er, assignmentRepo: ar, coordinator: c, validator: v}
}

type createEngineerRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Seniority   string   `json:"seniority"`
	Skills      []string `json:"skills"`
	MaxCapacity *int     `json:"max_capacity"`
}

func (h *EngineersHandler) CreateEngineer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, map[string]any{"error": "cannot read body"}, http.StatusBadRequest)
		return
	}

	if msg, err := h.validator.validate(r.Context(), "engineer_create", body); err != nil {
		writeDomainError(w, err)
		return
	} else if msg != "" {
		writeJSON(w, map[string]any{"error": msg}, http.StatusBadRequest)
		return
	}

	var req createEngineerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, map[string]any{"error": "invalid request"}, http.StatusBadRequest)
		return
	}

	e := &models.Engineer{
		Name:        req.Name,
		Email:       req.Email,
		Role:        models.RoleEngineer,
		Seniority:   models.SeniorityJunior,
		Skills:      req.Skills,
		MaxCapacity: 100,
		Active:      true,
	}
	if req.Role != "" {
		e.Role = models.Role(req.Role)
	}
	if req.Seniority != "" {
		e.Seniority = models.Seniority(req.Seniority)
	}
	if req.MaxCapacity != nil {
		e.MaxCapacity = *req.MaxCapacity
	}

	ctx := r.Context()
	if existing, err := h.engineerRepo.GetEngineerByEmail(ctx, e.Email); err != nil {
		writeDomainError(w, err)
		return
	} else if existing != nil {
		writeJSON(w, map[string]any{"error": "email already registered"}, http.StatusConflict)
		return
	}

	id, err := h.engineerRepo.CreateEngineer(ctx, e)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	e.ID = id

	writeJSON(w, e, http.StatusCreated)
}

func (h *EngineersHandler) ListEngineers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(q.Get("limit"), q.Get("offset"))

	engineers, err := h.engineerRepo.ListEngineers(r.Context(), q.Get("skill"), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if engineers == nil {
		engineers = []models.Engineer{}
	}

	writeJSON(w, map[string]any{"count": len(engineers), "items": engineers}, http.StatusOK)
}

func (h *EngineersHandler) GetEngineer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid id"}, http.StatusBadRequest)
		return
	}

	e, err := h.engineerRepo.GetEngineer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if e == nil {
		writeJSON(w, map[string]any{"error": "engineer not found"}, http.StatusNotFound)
		return
	}

	writeJSON(w, e, http.StatusOK)
}

type updateEngineerRequest struct {
	Name        *string   `json:"name"`
	Seniority   *string   `json:"seniority"`
	Skills      *[]string `json:"skills"`
	MaxCapacity *int      `json:"max_capacity"`
}

// UpdateEngineer mutates profile fields. Only the engineer themself or a
// manager may update; capacity changes go through the coordinator so the
// allocation-sum invariant is re-checked under a transaction.
func (h *EngineersHandler) UpdateEngineer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid id"}, http.StatusBadRequest)
		return
	}
	requesterID, requesterRole, ok := identity(r)
	if !ok {
		writeJSON(w, map[string]any{"error": "missing identity"}, http.StatusUnauthorized)
		return
	}
	if requesterID != id && requesterRole != models.RoleManager {
		writeJSON(w, map[string]any{"error": "only the engineer or a manager can update the record"}, http.StatusForbidden)
		return
	}

	var req updateEngineerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{"error": "invalid request"}, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	e, err := h.engineerRepo.GetEngineer(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if e == nil {
		writeJSON(w, map[string]any{"error": "engineer not found"}, http.StatusNotFound)
		return
	}

	if req.Name != nil {
		e.Name = *req.Name
	}
	if req.Seniority != nil {
		s := models.Seniority(*req.Seniority)
		if !s.Valid() {
			writeJSON(w, map[string]any{"error": "invalid seniority"}, http.StatusBadRequest)
			return
		}
		e.Seniority = s
	}
	if req.Skills != nil {
		e.Skills = *req.Skills
	}

	if err := h.engineerRepo.UpdateEngineer(ctx, e); err != nil {
		writeDomainError(w, err)
		return
	}

	if req.MaxCapacity != nil {
		if err := h.coordinator.UpdateCapacity(ctx, id, *req.MaxCapacity, requesterID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	// reread so the response reflects the committed row, not our working copy
	updated, err := h.engineerRepo.GetEngineer(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, updated, http.StatusOK)
}

func (h *EngineersHandler) DeactivateEngineer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid id"}, http.StatusBadRequest)
		return
	}
	requesterID, _, ok := identity(r)
	if !ok {
		writeJSON(w, map[string]any{"error": "missing identity"}, http.StatusUnauthorized)
		return
	}

	if err := h.coordinator.DeactivateEngineer(r.Context(), id, requesterID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, map[string]any{"id": id, "active": false}, http.StatusOK)
}

// GetCapacity reports how much of the engineer's capacity is committed and
// how much remains available.
func (h *EngineersHandler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid id"}, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	e, err := h.engineerRepo.GetEngineer(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if e == nil {
		writeJSON(w, map[string]any{"error": "engineer not found"}, http.StatusNotFound)
		return
	}

	assignments, err := h.assignmentRepo.ListAssignmentsByEngineer(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	allocated := capacity.Allocated(assignments, 0)
	writeJSON(w, map[string]any{
		"engineer_id":  id,
		"max_capacity": e.MaxCapacity,
		"allocated":    allocated,
		"available":    e.MaxCapacity - allocated,
	}, http.StatusOK)
}

func (h *EngineersHandler) ListEngineerAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid id"}, http.StatusBadRequest)
		return
	}

	assignments, err := h.assignmentRepo.ListAssignmentsByEngineer(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}

	writeJSON(w, map[string]any{"count": len(assignments), "items": assignments}, http.StatusOK)
}

func pathID(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func pagination(limitStr, offsetStr string) (int, int) {
	limit := 50
	if v, err := strconv.Atoi(limitStr); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(offsetStr); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
