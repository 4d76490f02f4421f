package http

import (
	"net/http"
	"time"

	"planora/internal/core"
	"planora/internal/identity"
)

type goalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	TargetValue int64  `json:"target_value"`
	Unit        string `json:"unit"`
	Deadline    string `json:"deadline"`
}

func (req goalRequest) toGoal(ownerID string, loc *time.Location) (core.Goal, error) {
	g := core.Goal{
		OwnerID:     ownerID,
		Title:       sanitizeInput(req.Title),
		Description: sanitizeInput(req.Description),
		Category:    core.GoalCategory(req.Category),
		TargetValue: req.TargetValue,
		Unit:        sanitizeInput(req.Unit),
	}
	if req.Deadline != "" {
		deadline, err := parseDate(req.Deadline, loc)
		if err != nil {
			return core.Goal{}, err
		}
		g.Deadline = &deadline
	}
	return g, nil
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status := core.GoalStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	details, err := s.goals.ListGoals(r.Context(), ownerID, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]goalJSON, 0, len(details))
	for _, d := range details {
		out = append(out, toGoalJSON(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": out})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := req.toGoal(ownerID, s.ledger.Resolver().Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline, expected YYYY-MM-DD")
		return
	}

	saved, err := s.goals.CreateGoal(r.Context(), g)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	detail, err := s.goals.GetGoal(r.Context(), ownerID, saved.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGoalJSON(detail))
}

func (s *Server) handleGoalOverview(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := s.goals.Overview(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalStatsJSON(stats))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	detail, err := s.goals.GetGoal(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalJSON(detail))
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Load the current record so status, progress and creation time
	// survive the update.
	current, err := s.goals.GetGoal(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	g, err := req.toGoal(ownerID, s.ledger.Resolver().Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline, expected YYYY-MM-DD")
		return
	}
	g.ID = current.Goal.ID
	g.Status = current.Goal.Status
	g.CurrentValue = current.Goal.CurrentValue
	g.CreatedAt = current.Goal.CreatedAt

	if _, err := s.goals.UpdateGoal(r.Context(), g); err != nil {
		writeServiceError(w, err)
		return
	}

	detail, err := s.goals.GetGoal(r.Context(), ownerID, g.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalJSON(detail))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.goals.DeleteGoal(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGoalStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.goals.SetStatus(r.Context(), ownerID, r.PathValue("id"), core.GoalStatus(req.Status))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	detail, err := s.goals.GetGoal(r.Context(), ownerID, updated.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toGoalJSON(detail))
}

func (s *Server) handleAddGoalTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Task string `json:"task"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.goals.AddTask(r.Context(), ownerID, r.PathValue("id"), sanitizeInput(req.Task))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, goalTaskJSON{
		ID:         task.ID,
		Task:       task.Task,
		Completed:  task.Completed,
		OrderIndex: task.OrderIndex,
	})
}

func (s *Server) handleToggleGoalTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Completed bool `json:"completed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.goals.SetTaskCompleted(r.Context(), ownerID, r.PathValue("id"), r.PathValue("taskID"), req.Completed); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteGoalTask(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.goals.DeleteTask(r.Context(), ownerID, r.PathValue("id"), r.PathValue("taskID")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGoalProgress(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entries, err := s.goals.ListProgress(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": toProgressListJSON(entries)})
}

func (s *Server) handleLogGoalProgress(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Value int64  `json:"value"`
		Note  string `json:"note"`
		Date  string `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date := time.Time{}
	if req.Date != "" {
		var err error
		date, err = parseDate(req.Date, s.ledger.Resolver().Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	entry, err := s.goals.LogProgress(r.Context(), ownerID, r.PathValue("id"), req.Value, sanitizeInput(req.Note), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	detail, err := s.goals.GetGoal(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"entry": progressEntryJSON{
			ID:    entry.ID,
			Date:  entry.Date.Format("2006-01-02"),
			Value: entry.Value,
			Note:  entry.Note,
		},
		"goal": toGoalJSON(detail),
	})
}
