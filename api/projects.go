package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/garnizeh/resource/internal/assignment"
	"github.com/garnizeh/resource/pkg/models"
	"github.com/garnizeh/resource/pkg/repository"
)

type ProjectsHandler struct {
	projectRepo    repository.ProjectRepo
	engineerRepo   repository.EngineerRepo
	assignmentRepo repository.AssignmentRepo
	coordinator    *assignment.Coordinator
	validator      *validator
}

func NewProjectsHandler(pr repository.ProjectRepo, er repository.EngineerRepo, ar repository.AssignmentRepo, c *assignment.Coordinator, v *validator) *ProjectsHandler {
	return &ProjectsHandler{projectRepo: pr, engineerRepo: er, assignmentRepo: ar, coordinator: c, validator: v}
}

type createProjectRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	StartDate      int64    `json:"start_date"`
	EndDate        int64    `json:"end_date"`
	RequiredSkills []string `json:"required_skills"`
	TeamSize       int      `json:"team_size"`
	Status         string   `json:"status"`
}

// CreateProject registers a new project owned by the requesting manager.
func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	requesterID, requesterRole, ok := identity(r)
	if !ok {
		writeJSON(w, map[string]any{"error": "missing identity"}, http.StatusUnauthorized)
		return
	}
	if requesterRole != models.RoleManager {
		writeJSON(w, map[string]any{"error": "only managers can create projects"}, http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, map[string]any{"error": "cannot read body"}, http.StatusBadRequest)
		return
	}
	if msg, err := h.validator.validate(r.Context(), "project_create", body); err != nil {
		writeDomainError(w, err)
		return
	} else if msg != "" {
		writeJSON(w, map[string]any{"error": msg}, http.StatusBadRequest)
		return
	}

	var req createProjectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, map[string]any{"error": "invalid request"}, http.StatusBadRequest)
		return
	}
	if req.EndDate <= req.StartDate {
		writeJSON(w, map[string]any{"error": "end date must be after start date"}, http.StatusBadRequest)
		return
	}

	p := &models.Project{
		Name:           req.Name,
		Description:    req.Description,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		RequiredSkills: req.RequiredSkills,
		TeamSize:       req.TeamSize,
		Status:         models.StatusPlanning,
		ManagerID:      requesterID,
	}
	if req.Status != "" {
		p.Status = models.ProjectStatus(req.Status)
	}
	if p.TeamSize <= 0 {
		p.TeamSize = 1
	}

	id, err := h.projectRepo.CreateProject(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	p.ID = id

	writeJSON(w, p, http.StatusCreated)
}

func (h *ProjectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(q.Get("limit"), q.Get("offset"))

	var managerID int64
	if m := q.Get("manager_id"); m != "" {
		if v, err := strconv.ParseInt(m, 10, 64); err == nil {
			managerID = v
		}
	}

	projects, err := h.projectRepo.ListProjects(r.Context(), models.ProjectStatus(q.Get("status")), managerID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	writeJSON(w, map[string]any{"count": len(projects), "items": projects}, http.StatusOK)
}

func (h *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid id"}, http.StatusBadRequest)
		return
	}

	p, err := h.projectRepo.GetProject(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p == nil {
		writeJSON(w, map[string]any{"error": "project not found"}, http.StatusNotFound)
		return
	}

	writeJSON(w, p, http.StatusOK)
}

type updateProjectRequest struct {
	Name           *string   `json:"name"`
	Description    *string   `json:"description"`
	StartDate      *int64    `json:"start_date"`
	EndDate        *int64    `json:"end_date"`
	RequiredSkills *[]string `json:"required_skills"`
	TeamSize       *int      `json:"team_size"`
	Status         *string   `json:"status"`
}

func (h *ProjectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	p, err := h.projectRepo.GetProject(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p == nil {
		writeJSON(w, map[string]any{"error": "project not found"}, http.StatusNotFound)
		return
	}
	if p.ManagerID != requesterID {
		writeJSON(w, map[string]any{"error": "only the project manager can update the project"}, http.StatusForbidden)
		return
	}

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{"error": "invalid request"}, http.StatusBadRequest)
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.StartDate != nil {
		p.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		p.EndDate = *req.EndDate
	}
	if req.RequiredSkills != nil {
		if len(*req.RequiredSkills) == 0 {
			writeJSON(w, map[string]any{"error": "at least one required skill"}, http.StatusBadRequest)
			return
		}
		p.RequiredSkills = *req.RequiredSkills
	}
	if req.TeamSize != nil {
		p.TeamSize = *req.TeamSize
	}
	if req.Status != nil {
		s := models.ProjectStatus(*req.Status)
		if !s.Valid() {
			writeJSON(w, map[string]any{"error": "invalid status"}, http.StatusBadRequest)
			return
		}
		p.Status = s
	}
	if p.EndDate <= p.StartDate {
		writeJSON(w, map[string]any{"error": "end date must be after start date"}, http.StatusBadRequest)
		return
	}

	if err := h.projectRepo.UpdateProject(ctx, p); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, p, http.StatusOK)
}

// DeleteProject removes the project and all of its ledger entries in one
// transaction via the coordinator.
func (h *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
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

	if err := h.coordinator.DeleteProject(r.Context(), id, requesterID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, map[string]any{"id": id, "deleted": true}, http.StatusOK)
}

// GetTeam returns the project-side view of the ledger.
func (h *ProjectsHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid id"}, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	p, err := h.projectRepo.GetProject(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p == nil {
		writeJSON(w, map[string]any{"error": "project not found"}, http.StatusNotFound)
		return
	}

	team, err := h.assignmentRepo.ListAssignmentsByProject(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if team == nil {
		team = []models.Assignment{}
	}

	writeJSON(w, map[string]any{"project_id": id, "count": len(team), "items": team}, http.StatusOK)
}
