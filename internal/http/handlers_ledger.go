package http

import (
	"log/slog"
	"net/http"
	"time"

	"planora/internal/core"
	"planora/internal/identity"
)

type createTransactionRequest struct {
	Scope      string `json:"scope"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	Category   string `json:"category"`
	Note       string `json:"note"`
	OccurredAt string `json:"occurred_at"`
}

type salaryRequest struct {
	Amount string `json:"amount"`
	Note   string `json:"note"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	kind, offset, err := parseScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category := sanitizeInput(r.URL.Query().Get("category"))

	// Opportunistic rollover: reading a summary on or after the cycle
	// boundary must reflect the reset balance. A rollover failure does
	// not block the read.
	if _, _, err := s.ledger.EnsureRollover(r.Context(), ownerID); err != nil {
		slog.WarnContext(r.Context(), "rollover check failed", "error", err)
	}

	summary, err := s.ledger.Summarize(r.Context(), ownerID, kind, offset, category)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryJSON(summary))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := s.ledger.GlobalBalance(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance_cents": balance.Cents,
		"balance":       balance.Units(),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	categories, err := s.ledger.Categories(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	kind, offset, err := parseScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category := sanitizeInput(r.URL.Query().Get("category"))

	transactions, err := s.ledger.Transactions(r.Context(), ownerID, kind, offset, category)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionListJSON(transactions)})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	occurredAt := time.Time{}
	if req.OccurredAt != "" {
		occurredAt, err = parseDate(req.OccurredAt, s.ledger.Resolver().Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid occurred_at, expected YYYY-MM-DD")
			return
		}
	}

	t := core.Transaction{
		OwnerID:    ownerID,
		Scope:      core.Scope(req.Scope),
		Kind:       core.Kind(req.Kind),
		Amount:     core.Money{Cents: cents},
		Category:   sanitizeInput(req.Category),
		Note:       sanitizeInput(req.Note),
		OccurredAt: occurredAt,
	}

	saved, err := s.ledger.AddTransaction(r.Context(), t)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionJSON(saved))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSalary(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req salaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	saved, err := s.ledger.AddSalary(r.Context(), ownerID, core.Money{Cents: cents}, sanitizeInput(req.Note))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionJSON(saved))
}

func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	ownerID, err := identity.OwnerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reset, applied, err := s.ledger.EnsureRollover(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]any{"applied": applied}
	if applied {
		resp["reset"] = toTransactionJSON(reset)
	}
	writeJSON(w, http.StatusOK, resp)
}
