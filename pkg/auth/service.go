// Package auth implements credential verification for the two acceptance
// paths: opaque API keys (prefix "agentflow_") and HS256-signed session
// cookies. Sign-up through the public endpoint is disabled by policy;
// accounts are created server-side for invite redemption and bootstrap.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentflow-dev/agentflow/pkg/models"
	"github.com/agentflow-dev/agentflow/pkg/store"
)

// APIKeyPrefix marks every producer credential this service issues.
const APIKeyPrefix = "agentflow_"

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "agentflow_session"

// sessionTTL bounds how long a signed-in session stays valid.
const sessionTTL = 7 * 24 * time.Hour

var (
	// ErrUnauthorized is returned when no acceptance path admits the request.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSignUpDisabled is returned by the public sign-up endpoint.
	ErrSignUpDisabled = errors.New("sign-up is disabled")

	// ErrEmailDomainNotAllowed is returned for server-side creation outside
	// the allow-list.
	ErrEmailDomainNotAllowed = errors.New("email domain not allowed")

	// ErrInvalidCredentials is returned on a failed sign-in.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Principal is the admitted identity attached to a request.
type Principal struct {
	UserID string
	Email  string
}

// Service verifies credentials against the store and issues new ones.
type Service struct {
	store          *store.Store
	secret         []byte
	allowedDomains []string
}

// NewService creates an auth Service. allowedDomains empty means any domain
// may be created server-side.
func NewService(st *store.Store, secret string, allowedDomains []string) *Service {
	return &Service{store: st, secret: []byte(secret), allowedDomains: allowedDomains}
}

// VerifyAPIKey checks an x-api-key header value. Tokens without the
// agentflow_ prefix are rejected before any store lookup.
func (s *Service) VerifyAPIKey(ctx context.Context, token string) (*Principal, error) {
	if !strings.HasPrefix(token, APIKeyPrefix) {
		return nil, ErrUnauthorized
	}
	key, err := s.store.GetAPIKeyByHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to verify api key: %w", err)
	}
	user, err := s.store.GetUser(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load key owner: %w", err)
	}
	return &Principal{UserID: user.ID, Email: user.Email}, nil
}

// VerifySessionToken checks a session cookie value.
func (s *Service) VerifySessionToken(ctx context.Context, token string) (*Principal, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return &Principal{UserID: user.ID, Email: user.Email}, nil
}

// SignIn verifies email/password and returns a signed session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *Principal, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, &Principal{UserID: user.ID, Email: user.Email}, nil
}

// CreateUser creates an account server-side, honoring the domain allow-list.
func (s *Service) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, store.NewValidationError("email", "invalid")
	}
	if len(password) < 8 {
		return nil, store.NewValidationError("password", "must be at least 8 characters")
	}
	if !s.domainAllowed(email) {
		return nil, ErrEmailDomainNotAllowed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateAPIKey mints a new producer credential for a user. The plaintext
// token is returned exactly once; only its hash is stored.
func (s *Service) CreateAPIKey(ctx context.Context, userID, name string) (*models.APIKey, string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("failed to generate api key: %w", err)
	}
	token := APIKeyPrefix + hex.EncodeToString(raw)

	key := &models.APIKey{
		ID:      uuid.New().String(),
		UserID:  userID,
		Name:    name,
		KeyHash: hashToken(token),
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}
	return key, token, nil
}

// ListAPIKeys returns a user's keys without hashes leaving the store layer.
func (s *Service) ListAPIKeys(ctx context.Context, userID string) ([]*models.APIKey, error) {
	return s.store.ListAPIKeys(ctx, userID)
}

func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

func (s *Service) domainAllowed(email string) bool {
	if len(s.allowedDomains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	for _, allowed := range s.allowedDomains {
		if strings.EqualFold(strings.TrimSpace(allowed), domain) {
			return true
		}
	}
	return false
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
