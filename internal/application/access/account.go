package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNTS
// The credential side of access: a teacher's login record. Password hashing
// and verification live in the interface layer; this package only defines
// what an account is and how it is stored.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrAccountNotFound - no account under the given login.
	ErrAccountNotFound = errors.New("access: account not found")

	// ErrAccountExists - the login is already taken.
	ErrAccountExists = errors.New("access: account already exists")

	// ErrInvalidLogin - login must be non-empty.
	ErrInvalidLogin = errors.New("access: invalid login")
)

// Account is a teacher's login record.
type Account struct {
	// ID identifies the teacher; used as TeacherID across the system.
	ID string

	// Login is the unique login name.
	Login string

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string

	// DisplayName is the teacher's visible name.
	DisplayName string

	// Role determines the actor's scope.
	Role Role

	// CreatedAt is when the account was created.
	CreatedAt time.Time
}

// NewAccount builds an account with basic validation. The caller supplies
// an already hashed password.
func NewAccount(id, login, passwordHash, displayName string, role Role) (*Account, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, ErrInvalidLogin
	}
	if passwordHash == "" {
		return nil, errors.New("access: password hash is required")
	}
	if !role.IsValid() {
		role = RoleTeacher
	}

	return &Account{
		ID:           id,
		Login:        login,
		PasswordHash: passwordHash,
		DisplayName:  strings.TrimSpace(displayName),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Actor returns the actor this account authenticates as.
func (a *Account) Actor() Actor {
	return NewActor(student.TeacherID(a.ID), a.Role)
}

// AccountRepository stores teacher accounts.
type AccountRepository interface {
	// Create inserts an account. Returns ErrAccountExists on a taken login.
	Create(ctx context.Context, account *Account) error

	// GetByLogin returns the account under the given login.
	// Returns ErrAccountNotFound if absent.
	GetByLogin(ctx context.Context, login string) (*Account, error)

	// GetByID returns the account by teacher ID.
	GetByID(ctx context.Context, id string) (*Account, error)
}
