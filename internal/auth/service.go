package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/exhibit-pos/exhibit-pos/internal/shared"
	"github.com/exhibit-pos/exhibit-pos/internal/users"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	sessions *shared.SessionManager
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *shared.SessionManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (users.User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return users.User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a bearer session.
func (s *Service) Login(ctx context.Context, in LoginInput) (TokenResponse, error) {
	user, err := s.Authenticate(ctx, in.Username, in.Password)
	if err != nil {
		return TokenResponse{}, err
	}
	sess, err := s.sessions.Issue(ctx, user.ID, user.Username)
	if err != nil {
		return TokenResponse{}, err
	}
	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("touch last login", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	} else {
		user.LastLogin = &now
	}
	return TokenResponse{
		AccessToken: sess.Token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.sessions.TTL().Seconds()),
		User:        users.NewProfile(user),
	}, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Me returns the profile of the session owner.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (users.Profile, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return users.Profile{}, err
	}
	return users.NewProfile(user), nil
}
