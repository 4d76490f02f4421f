// Package http serves the JSON API: identity, ledger summaries,
// transactions, goals and todos.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"planora/internal/identity"
	"planora/internal/log"
	"planora/internal/services"
)

type Server struct {
	http.Server

	ledger   *services.LedgerService
	goals    *services.GoalService
	todos    *services.TodoService
	identity *identity.Service

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledgerSvc *services.LedgerService, goalSvc *services.GoalService, todoSvc *services.TodoService, identitySvc *identity.Service) *Server {
	mux := http.NewServeMux()
	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      log.Middleware(logger)(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		ledger:      ledgerSvc,
		goals:       goalSvc,
		todos:       todoSvc,
		identity:    identitySvc,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /api/register", s.withSecurityHeaders(s.handleRegister))
	mux.HandleFunc("POST /api/login", s.withSecurityHeaders(s.handleLogin))

	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return s.withSecurityHeaders(s.withAuth(h))
	}

	mux.HandleFunc("GET /api/summary", protected(s.handleSummary))
	mux.HandleFunc("GET /api/balance", protected(s.handleBalance))
	mux.HandleFunc("GET /api/categories", protected(s.handleCategories))
	mux.HandleFunc("GET /api/transactions", protected(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", protected(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", protected(s.handleDeleteTransaction))
	mux.HandleFunc("POST /api/salary", protected(s.handleAddSalary))
	mux.HandleFunc("POST /api/rollover", protected(s.handleRollover))

	mux.HandleFunc("GET /api/goals", protected(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", protected(s.handleCreateGoal))
	mux.HandleFunc("GET /api/goals/overview", protected(s.handleGoalOverview))
	mux.HandleFunc("GET /api/goals/{id}", protected(s.handleGetGoal))
	mux.HandleFunc("PUT /api/goals/{id}", protected(s.handleUpdateGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", protected(s.handleDeleteGoal))
	mux.HandleFunc("POST /api/goals/{id}/status", protected(s.handleGoalStatus))
	mux.HandleFunc("POST /api/goals/{id}/tasks", protected(s.handleAddGoalTask))
	mux.HandleFunc("PATCH /api/goals/{id}/tasks/{taskID}", protected(s.handleToggleGoalTask))
	mux.HandleFunc("DELETE /api/goals/{id}/tasks/{taskID}", protected(s.handleDeleteGoalTask))
	mux.HandleFunc("GET /api/goals/{id}/progress", protected(s.handleListGoalProgress))
	mux.HandleFunc("POST /api/goals/{id}/progress", protected(s.handleLogGoalProgress))

	mux.HandleFunc("GET /api/todos", protected(s.handleListTodos))
	mux.HandleFunc("POST /api/todos", protected(s.handleCreateTodo))
	mux.HandleFunc("PATCH /api/todos/{id}", protected(s.handleToggleTodo))
	mux.HandleFunc("DELETE /api/todos/{id}", protected(s.handleDeleteTodo))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return s.identity.Middleware(next).ServeHTTP
}

// withSecurityHeaders adds security headers, rate limiting on writes, and
// request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Generate request ID for tracing
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)
		logger := log.FromContext(ctx).With(log.FieldRequestID, requestID)

		logger.InfoContext(ctx, "Request started",
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit mutating requests only
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logger.InfoContext(ctx, "Request completed",
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
