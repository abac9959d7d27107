package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/garnizeh/resource/internal/assignment"
	"github.com/garnizeh/resource/pkg/models"
)

type AssignmentsHandler struct {
	coordinator *assignment.Coordinator
	validator   *validator
}

func NewAssignmentsHandler(c *assignment.Coordinator, v *validator) *AssignmentsHandler {
	return &AssignmentsHandler{coordinator: c, validator: v}
}

type createAssignmentRequest struct {
	EngineerID int64  `json:"engineer_id"`
	Allocation int    `json:"allocation"`
	Role       string `json:"role"`
}

// CreateAssignment puts an engineer on the project team.
func (h *AssignmentsHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid project id"}, http.StatusBadRequest)
		return
	}
	requesterID, _, ok := identity(r)
	if !ok {
		writeJSON(w, map[string]any{"error": "missing identity"}, http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, map[string]any{"error": "cannot read body"}, http.StatusBadRequest)
		return
	}
	if msg, err := h.validator.validate(r.Context(), "assignment_create", body); err != nil {
		writeDomainError(w, err)
		return
	} else if msg != "" {
		writeJSON(w, map[string]any{"error": msg}, http.StatusBadRequest)
		return
	}

	var req createAssignmentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, map[string]any{"error": "invalid request"}, http.StatusBadRequest)
		return
	}

	a, err := h.coordinator.Assign(r.Context(), projectID, req.EngineerID, req.Allocation, models.ProjectRole(req.Role), requesterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, a, http.StatusCreated)
}

type updateAssignmentRequest struct {
	Allocation int    `json:"allocation"`
	Role       string `json:"role"`
}

// UpdateAssignment changes the allocation or role of an existing assignment.
func (h *AssignmentsHandler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid project id"}, http.StatusBadRequest)
		return
	}
	engineerID, ok := pathID(r, "engineerId")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid engineer id"}, http.StatusBadRequest)
		return
	}
	requesterID, _, ok := identity(r)
	if !ok {
		writeJSON(w, map[string]any{"error": "missing identity"}, http.StatusUnauthorized)
		return
	}

	var req updateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{"error": "invalid request"}, http.StatusBadRequest)
		return
	}

	a, err := h.coordinator.UpdateAllocation(r.Context(), projectID, engineerID, req.Allocation, models.ProjectRole(req.Role), requesterID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, a, http.StatusOK)
}

// DeleteAssignment takes an engineer off the project team.
func (h *AssignmentsHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid project id"}, http.StatusBadRequest)
		return
	}
	engineerID, ok := pathID(r, "engineerId")
	if !ok {
		writeJSON(w, map[string]any{"error": "invalid engineer id"}, http.StatusBadRequest)
		return
	}
	requesterID, _, ok := identity(r)
	if !ok {
		writeJSON(w, map[string]any{"error": "missing identity"}, http.StatusUnauthorized)
		return
	}

	if err := h.coordinator.Unassign(r.Context(), projectID, engineerID, requesterID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, map[string]any{"project_id": projectID, "engineer_id": engineerID, "deleted": true}, http.StatusOK)
}
