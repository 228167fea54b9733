package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/gripeboard/internal/store"
	"go.uber.org/zap"
)

var (
	ErrMissingEmail    = errors.New("email is required")
	ErrSessionNotFound = errors.New("session expired or not found")
	ErrUserNotFound    = errors.New("user not found")
)

// SessionStore persists bearer sessions. Both store.SQLStore and
// session.RedisStore satisfy it. GetSession returns nil for unknown or
// expired tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, session *store.Session) error
	GetSession(ctx context.Context, token string) (*store.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Profile is what the upstream sign-in provider tells us about a caller.
type Profile struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
}

// Service resolves bearer tokens to caller identities
type Service struct {
	store      store.Store
	sessions   SessionStore
	sessionTTL time.Duration
	logger     *zap.Logger
}

// NewService creates a new auth service. When sessions is nil the user store
// also holds sessions.
func NewService(s store.Store, sessions SessionStore, sessionTTL time.Duration, logger *zap.Logger) *Service {
	if sessions == nil {
		sessions = s
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      s,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// SignIn upserts the user identified by p.Email and mints a new session.
func (s *Service) SignIn(ctx context.Context, p Profile) (*store.Session, *store.User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, nil, ErrMissingEmail
	}

	user := &store.User{
		Email:      email,
		Name:       p.Name,
		Image:      p.Image,
		Provider:   p.Provider,
		ProviderID: p.ProviderID,
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("upsert user: %w", err)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	sess := &store.Session{
		Token:     base64.URLEncoding.EncodeToString(tokenBytes),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("session created", zap.String("user_id", user.ID), zap.String("provider", user.Provider))
	return sess, user, nil
}

// Resolve maps a bearer token to the caller's stable identity (their user
// ID). It fails with ErrSessionNotFound for empty, unknown or expired tokens
// and ErrUserNotFound when the session outlived its user record.
func (s *Service) Resolve(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	sess, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// SignOut revokes the session for token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return ErrSessionNotFound
	}
	return s.sessions.DeleteSession(ctx, token)
}

// HashIP creates a hash of an IP address for rate limit keys
func HashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:16])
}
