package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"planora/internal/identity"
	"planora/internal/scope"
	"planora/internal/services"
	"planora/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testInstant is 2024-03-20 10:00 in Asia/Jakarta, well before the
// rollover day.
func testInstant(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2024, time.March, 20, 10, 0, 0, 0, loc)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st := memory.New()
	instant := testInstant(t)
	resolver, err := scope.NewWithClock(scope.DefaultTimezone, func() time.Time { return instant })
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	ledgerSvc := services.NewLedgerService(st, resolver, nil, nil, 28)
	goalSvc := services.NewGoalService(st, resolver, nil)
	todoSvc := services.NewTodoService(st)
	identitySvc := identity.NewService(st, testSecret, time.Hour)

	srv := NewServer(":0", ledgerSvc, goalSvc, todoSvc, identitySvc)
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func registerUser(t *testing.T, srv *Server, email string) string {
	t.Helper()

	rr := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"email":    email,
		"password": "longenough",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.Token
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "Mara@Example.com",
		"password": "longenough",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "mara@example.com",
		"password": "wrongpassword",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"email":    "mara@example.com",
		"password": "longenough",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register status=%d", rr.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/summary", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/summary", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status=%d", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"scope":    "monthly",
		"kind":     "expense",
		"amount":   "125,50",
		"category": "food",
		"note":     "groceries",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created transactionJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Cents != 12550 {
		t.Fatalf("cents=%d, want 12550", created.Cents)
	}
	if created.ID == "" {
		t.Fatal("created transaction has no id")
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions?scope=monthly", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var list struct {
		Transactions []transactionJSON `json:"transactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Transactions) != 1 {
		t.Fatalf("len(transactions)=%d, want 1", len(list.Transactions))
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete again status=%d", rr.Code)
	}
}

func TestTransactionValidation(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	cases := []struct {
		name string
		body map[string]any
	}{
		{"zero amount", map[string]any{"scope": "monthly", "kind": "expense", "amount": "0", "category": "food"}},
		{"bad scope", map[string]any{"scope": "yearly", "kind": "expense", "amount": "10", "category": "food"}},
		{"bad kind", map[string]any{"scope": "monthly", "kind": "transfer", "amount": "10", "category": "food"}},
		{"empty category", map[string]any{"scope": "monthly", "kind": "expense", "amount": "10", "category": ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestParseDateUsesReportingLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	got, err := parseDate("2024-03-01", ny)
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, ny)
	if !got.Equal(want) {
		t.Fatalf("parseDate = %v, want %v", got, want)
	}
	if y, m, d := got.Date(); y != 2024 || m != time.March || d != 1 {
		t.Fatalf("date shifted to %04d-%02d-%02d, want 2024-03-01", y, m, d)
	}
}

func TestTransactionExplicitDateStaysOnNamedDay(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"scope":       "monthly",
		"kind":        "expense",
		"amount":      "4,00",
		"category":    "food",
		"occurred_at": "2024-03-01",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created transactionJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	// Midnight in the reporting timezone, not UTC.
	if created.OccurredAt != "2024-03-01T00:00:00+07:00" {
		t.Fatalf("occurred_at=%q, want 2024-03-01T00:00:00+07:00", created.OccurredAt)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/summary?scope=monthly", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	var summary summaryJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalExpense != 400 {
		t.Fatalf("total expense=%d, want 400 inside March", summary.TotalExpense)
	}
	if len(summary.Series) != 31 || summary.Series[0].Expense != 400 {
		t.Fatalf("expense must land in the March 1 bucket, series=%+v", summary.Series)
	}
}

func TestSummaryAndBalance(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/salary", token, map[string]string{"amount": "1000"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("salary status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"scope": "monthly", "kind": "expense", "amount": "400", "category": "rent",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expense status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/summary?scope=monthly", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d body=%s", rr.Code, rr.Body.String())
	}
	var summary summaryJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalIncome != 100000 {
		t.Fatalf("total income=%d, want 100000", summary.TotalIncome)
	}
	if summary.TotalExpense != 40000 {
		t.Fatalf("total expense=%d, want 40000", summary.TotalExpense)
	}
	if summary.Balance != 60000 {
		t.Fatalf("balance=%d, want 60000", summary.Balance)
	}
	// March has 31 day buckets
	if len(summary.Series) != 31 {
		t.Fatalf("len(series)=%d, want 31", len(summary.Series))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/balance", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("balance status=%d", rr.Code)
	}
	var bal struct {
		Cents int64 `json:"balance_cents"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.Cents != 60000 {
		t.Fatalf("global balance=%d, want 60000", bal.Cents)
	}
}

func TestSummaryInvalidScope(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodGet, "/api/summary?scope=yearly", token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRolloverEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	// Day 20 is before the rollover day, nothing to apply.
	rr := doJSON(t, srv, http.MethodPost, "/api/rollover", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rollover status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Applied bool `json:"applied"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode rollover: %v", err)
	}
	if resp.Applied {
		t.Fatal("rollover applied before cycle day")
	}
}

func TestOwnerIsolation(t *testing.T) {
	srv := newTestServer(t)
	alice := registerUser(t, srv, "alice@example.com")
	bruno := registerUser(t, srv, "bruno@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", alice, map[string]any{
		"scope": "monthly", "kind": "expense", "amount": "10", "category": "food",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	var created transactionJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", bruno, nil)
	var list struct {
		Transactions []transactionJSON `json:"transactions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Transactions) != 0 {
		t.Fatalf("other owner sees %d transactions", len(list.Transactions))
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, bruno, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("cross-owner delete status=%d", rr.Code)
	}
}

func TestGoalLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/goals", token, map[string]any{
		"title":        "Read 12 books",
		"category":     "education",
		"target_value": 12,
		"unit":         "books",
		"deadline":     "2024-12-31",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create goal status=%d body=%s", rr.Code, rr.Body.String())
	}
	var goal goalJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &goal); err != nil {
		t.Fatalf("decode goal: %v", err)
	}
	if goal.Status != "active" {
		t.Fatalf("status=%q, want active", goal.Status)
	}
	if goal.DaysRemaining == nil {
		t.Fatal("expected days remaining with deadline set")
	}

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/goals/%s/tasks", goal.ID), token, map[string]string{
		"task": "pick the first book",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add task status=%d body=%s", rr.Code, rr.Body.String())
	}
	var task goalTaskJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}

	rr = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/goals/%s/tasks/%s", goal.ID, task.ID), token, map[string]bool{
		"completed": true,
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("toggle task status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/goals/%s/progress", goal.ID), token, map[string]any{
		"value": 3, "note": "good month",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("log progress status=%d body=%s", rr.Code, rr.Body.String())
	}
	var progressResp struct {
		Goal goalJSON `json:"goal"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &progressResp); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progressResp.Goal.CurrentValue != 3 {
		t.Fatalf("current value=%d, want 3", progressResp.Goal.CurrentValue)
	}
	if progressResp.Goal.TargetProgress != 25 {
		t.Fatalf("target progress=%v, want 25", progressResp.Goal.TargetProgress)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/goals/"+goal.ID, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get goal status=%d", rr.Code)
	}
	var detail goalJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.TasksCompleted != 1 || detail.TasksTotal != 1 {
		t.Fatalf("task progress %d/%d, want 1/1", detail.TasksCompleted, detail.TasksTotal)
	}

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/goals/%s/status", goal.ID), token, map[string]string{
		"status": "completed",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set status status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/goals/overview", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("overview status=%d", rr.Code)
	}
	var stats goalStatsJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Completed != 1 {
		t.Fatalf("completed=%d, want 1", stats.Completed)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/goals/"+goal.ID, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete goal status=%d", rr.Code)
	}
}

func TestGoalUpdatePreservesProgress(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/goals", token, map[string]any{
		"title": "Run more", "category": "health", "target_value": 100, "unit": "km",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create goal status=%d", rr.Code)
	}
	var goal goalJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &goal); err != nil {
		t.Fatalf("decode goal: %v", err)
	}

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/goals/%s/progress", goal.ID), token, map[string]any{"value": 40})
	if rr.Code != http.StatusCreated {
		t.Fatalf("log progress status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/goals/"+goal.ID, token, map[string]any{
		"title": "Run even more", "category": "health", "target_value": 200, "unit": "km",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update goal status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated goalJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Title != "Run even more" {
		t.Fatalf("title=%q", updated.Title)
	}
	if updated.CurrentValue != 40 {
		t.Fatalf("current value=%d, want 40 after update", updated.CurrentValue)
	}
	if updated.TargetValue != 200 {
		t.Fatalf("target value=%d, want 200", updated.TargetValue)
	}
}

func TestTodoLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodPost, "/api/todos", token, map[string]string{"text": "water the plants"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create todo status=%d body=%s", rr.Code, rr.Body.String())
	}
	var todo todoJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &todo); err != nil {
		t.Fatalf("decode todo: %v", err)
	}

	rr = doJSON(t, srv, http.MethodPatch, "/api/todos/"+todo.ID, token, map[string]bool{"completed": true})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("toggle todo status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/todos", token, nil)
	var list struct {
		Todos []todoJSON `json:"todos"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Todos) != 1 || !list.Todos[0].Completed {
		t.Fatalf("unexpected todos: %+v", list.Todos)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/todos/"+todo.ID, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete todo status=%d", rr.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "mara@example.com")

	rr := doJSON(t, srv, http.MethodGet, "/api/balance", token, nil)
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options=%q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied below the limit", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("request 61 allowed within the same minute")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("different client blocked")
	}
}
