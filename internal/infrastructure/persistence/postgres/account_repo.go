package postgres

import (
	"context"
	"fmt"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT REPOSITORY IMPLEMENTATION
// Teacher login records backing HTTP authentication.
// ══════════════════════════════════════════════════════════════════════════════

const accountColumns = `id, login, password_hash, display_name, role, created_at`

// AccountRepository implements access.AccountRepository for PostgreSQL.
type AccountRepository struct {
	q Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(q Querier) *AccountRepository {
	return &AccountRepository{q: q}
}

// Create inserts an account.
func (r *AccountRepository) Create(ctx context.Context, account *access.Account) error {
	query := `
		INSERT INTO teachers (id, login, password_hash, display_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`

	_, err := r.q.Exec(ctx, query,
		account.ID,
		account.Login,
		account.PasswordHash,
		account.DisplayName,
		string(account.Role),
		account.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return access.ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByLogin returns the account under the given login.
func (r *AccountRepository) GetByLogin(ctx context.Context, login string) (*access.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM teachers WHERE login = $1`

	return r.scanAccount(r.q.QueryRow(ctx, query, login))
}

// GetByID returns the account by teacher ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*access.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM teachers WHERE id = $1`

	return r.scanAccount(r.q.QueryRow(ctx, query, id))
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*access.Account, error) {
	var a access.Account
	var role string

	err := row.Scan(
		&a.ID,
		&a.Login,
		&a.PasswordHash,
		&a.DisplayName,
		&role,
		&a.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, access.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.Role = access.Role(role)
	return &a, nil
}
