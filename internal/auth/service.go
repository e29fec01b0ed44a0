package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/babelchat-server/internal/store"
	"github.com/vovakirdan/babelchat-server/internal/translate"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidLanguage is returned when the initial language is not supported.
	ErrInvalidLanguage = errors.New("unsupported language")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
)

// Accounts is the storage the service needs: users plus their language profile.
type Accounts interface {
	store.UserStore
	store.ProfileStore
}

// Registration describes a new account. Language is optional; when empty the
// user reads in the server default until they set a preference.
type Registration struct {
	Username string
	Password string
	Language string
}

// Account is the result of a successful register or login.
type Account struct {
	Token    string
	UserID   int64
	Username string
	Language string
}

// Service issues tokens for registered users.
type Service struct {
	accounts  Accounts
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(accounts Accounts, jwtConfig *JWTConfig) *Service {
	return &Service{
		accounts:  accounts,
		jwtConfig: jwtConfig,
	}
}

func (r *Registration) normalize() error {
	r.Username = strings.TrimSpace(r.Username)
	if len(r.Username) < minUsernameLen || len(r.Username) > maxUsernameLen {
		return ErrInvalidUsername
	}
	if len(r.Password) < minPasswordLen {
		return ErrInvalidPassword
	}
	if r.Language != "" {
		r.Language = translate.Normalize(r.Language)
		if !translate.IsSupported(r.Language) {
			return ErrInvalidLanguage
		}
	}
	return nil
}

// Register creates the user, stores the initial language when one is given,
// and returns a signed token.
func (s *Service) Register(ctx context.Context, reg Registration) (*Account, error) {
	if err := reg.normalize(); err != nil {
		return nil, err
	}

	switch _, err := s.accounts.GetUserByUsername(ctx, reg.Username); {
	case err == nil:
		return nil, ErrUserExists
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.accounts.CreateUser(ctx, reg.Username, hash)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if reg.Language != "" {
		if _, err := s.accounts.SetLanguage(ctx, user.ID, reg.Language); err != nil {
			return nil, fmt.Errorf("store language: %w", err)
		}
	}

	return s.issue(user, reg.Language)
}

// Login checks the password and returns a signed token. Language carries the
// stored preference, or is empty when the user never set one.
func (s *Service) Login(ctx context.Context, username, password string) (*Account, error) {
	user, err := s.accounts.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	lang, err := s.accounts.GetLanguage(ctx, user.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup language: %w", err)
	}
	return s.issue(user, lang)
}

func (s *Service) issue(user *store.User, lang string) (*Account, error) {
	token, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Account{Token: token, UserID: user.ID, Username: user.Username, Language: lang}, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
