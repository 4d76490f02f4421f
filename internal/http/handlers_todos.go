package http

import (
	"net/http"

	"planora/internal/identity"
)

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	todos, err := s.todos.List(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]todoJSON, 0, len(todos))
	for _, t := range todos {
		out = append(out, toTodoJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"todos": out})
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	todo, err := s.todos.Add(r.Context(), ownerID, sanitizeInput(req.Text))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTodoJSON(todo))
}

func (s *Server) handleToggleTodo(w http.ResponseWriter, r *http.Request) {
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

	if err := s.todos.SetCompleted(r.Context(), ownerID, r.PathValue("id"), req.Completed); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.todos.Delete(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
