package directory

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"incidentdesk.org/internal/rbac"
)

var (
	ErrInvalidInput = errors.New("directory: invalid input")
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: already exists")
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is a principal record. PrimaryRole is the legacy single-valued role
// column kept in sync with the user_roles relation for backward
// compatibility; effective roles always come from the relation with a
// primary-role fallback.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PrimaryRole  rbac.Role `json:"primary_role"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Update patches a user record. Nil members are left unchanged.
type Update struct {
	Email       *string
	DisplayName *string
	Password    *string
	PrimaryRole *rbac.Role
	Status      *string
}

// Store describes persistence for principal records and their role
// assignments. The (user, role) pair is unique; creating a user writes its
// assignment rows in the same operation, and deleting a user removes them.
type Store interface {
	CreateUser(ctx context.Context, u *User, roles []rbac.Role) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, upd Update) (User, error)
	DeleteUser(ctx context.Context, id string) error

	AssignRole(ctx context.Context, userID string, role rbac.Role) error
	RemoveRole(ctx context.Context, userID string, role rbac.Role) error
	RolesForUser(ctx context.Context, userID string) ([]rbac.Role, error)
}

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with the stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
