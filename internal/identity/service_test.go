package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"planora/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(memory.New(), testSecret, time.Hour)
}

func TestService_Register(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "Alice@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.ID == "" {
		t.Error("Register() should assign a user ID")
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Register() Email = %v, want lowercased alice@example.com", user.Email)
	}
	if user.PasswordHash == "correct-horse" {
		t.Error("Register() must not store the plain password")
	}
	if token == "" {
		t.Error("Register() should return a token")
	}

	ownerID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if ownerID != user.ID {
		t.Errorf("ParseToken() owner = %v, want %v", ownerID, user.ID)
	}
}

func TestService_Register_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "correct-horse"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("Register() error = %v, want ErrInvalidEmail", err)
	}
	if _, _, err := svc.Register(ctx, "bob@example.com", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Register() error = %v, want ErrWeakPassword", err)
	}

	if _, _, err := svc.Register(ctx, "bob@example.com", "correct-horse"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, _, err := svc.Register(ctx, "bob@example.com", "another-pass"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Register() duplicate error = %v, want ErrEmailTaken", err)
	}
}

func TestService_Login(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, "carol@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		user, token, err := svc.Login(ctx, "carol@example.com", "correct-horse")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if user.ID != registered.ID {
			t.Errorf("Login() user = %v, want %v", user.ID, registered.ID)
		}
		if token == "" {
			t.Error("Login() should return a token")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "carol@example.com", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown email matches wrong password error", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "nobody@example.com", "correct-horse")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestService_ParseToken_Invalid(t *testing.T) {
	svc := newTestService(t)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := svc.ParseToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewService(memory.New(), "ffffffffffffffffffffffffffffffff", time.Hour)
		token, err := other.IssueToken("owner-1")
		if err != nil {
			t.Fatalf("IssueToken() error = %v", err)
		}
		if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewService(memory.New(), testSecret, time.Hour)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := expired.IssueToken("owner-1")
		if err != nil {
			t.Fatalf("IssueToken() error = %v", err)
		}
		if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
		}
	})
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)

	var gotOwner string
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := OwnerIDFromContext(r.Context())
		if err != nil {
			t.Errorf("OwnerIDFromContext() error = %v", err)
		}
		gotOwner = owner
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid bearer token", func(t *testing.T) {
		token, err := svc.IssueToken("owner-42")
		if err != nil {
			t.Fatalf("IssueToken() error = %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if gotOwner != "owner-42" {
			t.Errorf("owner = %v, want owner-42", gotOwner)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestOwnerIDFromContext_Missing(t *testing.T) {
	if _, err := OwnerIDFromContext(context.Background()); err == nil {
		t.Error("OwnerIDFromContext() should fail on a bare context")
	}
}
