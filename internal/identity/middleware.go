package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKey string

const ownerIDKey ctxKey = "owner_id"

// Middleware authenticates requests with a bearer token and puts the owner
// id on the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing auth token", http.StatusUnauthorized)
			return
		}

		tokenStr := strings.TrimPrefix(h, "Bearer ")

		ownerID, err := s.ParseToken(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func OwnerIDFromContext(ctx context.Context) (string, error) {
	ownerID, ok := ctx.Value(ownerIDKey).(string)
	if !ok || ownerID == "" {
		return "", errors.New("not authenticated")
	}
	return ownerID, nil
}

// WithOwnerID returns a context carrying ownerID, for tests and internal
// callers that bypass the middleware.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}
