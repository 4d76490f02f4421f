package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"planora/internal/core"
	"planora/internal/identity"
	"planora/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain and store errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, core.ErrInvalidScope),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrCategoryTooLong),
		errors.Is(err, core.ErrNoteTooLong),
		errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrTitleTooLong),
		errors.Is(err, core.ErrInvalidGoalCategory),
		errors.Is(err, core.ErrInvalidGoalStatus),
		errors.Is(err, core.ErrNegativeTarget),
		errors.Is(err, core.ErrEmptyTask),
		errors.Is(err, core.ErrEmptyTodoText):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseScope extracts the reporting window from query parameters.
// Defaults to monthly with offset 0.
func parseScope(r *http.Request) (core.Scope, int, error) {
	kind := core.ScopeMonthly
	if v := strings.TrimSpace(r.URL.Query().Get("scope")); v != "" {
		kind = core.Scope(v)
		if !kind.Valid() {
			return "", 0, core.ErrInvalidScope
		}
	}

	offset := 0
	if v := strings.TrimSpace(r.URL.Query().Get("offset")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", 0, errors.New("invalid offset")
		}
		offset = n
	}

	return kind, offset, nil
}

// parseDate parses a date string in YYYY-MM-DD format as midnight in the
// reporting timezone, so client-supplied dates land in the calendar day
// they name.
func parseDate(dateStr string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", dateStr, loc)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}
