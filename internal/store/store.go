package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile holds per-user preferences.
type Profile struct {
	UserID    int64
	Language  string
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// ProfileStore handles language preferences.
type ProfileStore interface {
	// GetLanguage returns the stored language preference.
	// It returns ErrNotFound when the user never set one.
	GetLanguage(ctx context.Context, userID int64) (string, error)

	// SetLanguage creates or replaces the language preference.
	SetLanguage(ctx context.Context, userID int64, language string) (*Profile, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ProfileStore

	// Close closes the underlying database connection.
	Close() error
}
