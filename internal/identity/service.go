// Package identity provides account registration, credential verification
// and bearer-token authentication for the HTTP API.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"planora/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidToken       = errors.New("invalid token")
)

type Service struct {
	users  store.UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users store.UserStore, secret string, ttl time.Duration) *Service {
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Register creates an account and returns a signed token for it.
func (s *Service) Register(ctx context.Context, email, password string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return store.User{}, "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return store.User{}, "", ErrWeakPassword
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.InsertUser(ctx, store.User{
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return store.User{}, "", err
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns a signed token. Unknown email and
// wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	return user, token, nil
}

// IssueToken signs an HS256 token carrying the owner id.
func (s *Service) IssueToken(ownerID string) (string, error) {
	claims := jwt.MapClaims{
		"owner_id": ownerID,
		"iat":      s.now().Unix(),
		"exp":      s.now().Add(s.ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns the owner id it carries.
func (s *Service) ParseToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	ownerID, ok := claims["owner_id"].(string)
	if !ok || ownerID == "" {
		return "", ErrInvalidToken
	}
	return ownerID, nil
}
