package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/backworld/backworld-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an already-taken username or email.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidEmail is returned when the email doesn't look like an address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, username, email, password string) (string, *store.User, error) {
	username = strings.TrimSpace(username)
	if !usernameRe.MatchString(username) {
		return "", nil, ErrInvalidUsername
	}
	if !emailRe.MatchString(email) {
		return "", nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return "", nil, ErrInvalidPassword
	}

	if existing, err := s.store.GetUserByUsername(ctx, username); err == nil && existing != nil {
		return "", nil, ErrUserExists
	}
	if existing, err := s.store.GetUserByEmail(ctx, email); err == nil && existing != nil {
		return "", nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, email, hashedPassword)
	if err != nil {
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, false)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// Login validates credentials and returns a JWT token.
// The login field matches either a username or an email address.
func (s *Service) Login(ctx context.Context, login, password string) (string, *store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, login)
	if err != nil {
		user, err = s.store.GetUserByEmail(ctx, login)
	}
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		return "", nil, fmt.Errorf("update last login: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, false)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// CreateGuestUser creates a temporary guest user and returns a JWT token.
func (s *Service) CreateGuestUser(ctx context.Context) (string, *store.User, error) {
	sessionID := uuid.NewString()

	user, err := s.store.CreateGuestUser(ctx, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("create guest user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username, true)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// ValidateToken validates a JWT credential and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
