// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// Every write command that touches more than one table goes through a unit
// of work: all repositories returned by one UnitOfWork share one database
// transaction, so a ledger append, a balance update and a stock decrement
// either all commit or all roll back.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork is one open transaction exposing transactional repositories.
type UnitOfWork interface {
	// Students returns the student repository bound to this transaction.
	Students() student.Repository

	// Progress returns the completion record repository bound to this transaction.
	Progress() progress.Repository

	// Ledger returns the star transaction journal bound to this transaction.
	Ledger() progress.LedgerRepository

	// Rewards returns the reward catalog repository bound to this transaction.
	Rewards() reward.Repository

	// Redemptions returns the redemption repository bound to this transaction.
	Redemptions() reward.RedemptionRepository

	// Commit commits the transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory opens new units of work.
type UnitOfWorkFactory interface {
	// Begin starts a transaction.
	Begin(ctx context.Context) (UnitOfWork, error)
}
