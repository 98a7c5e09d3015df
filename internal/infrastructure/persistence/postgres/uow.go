package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/command"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK IMPLEMENTATION
// One pgx transaction, repositories bound to it. All repositories share the
// Querier abstraction, so binding them to a tx is just construction.
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork implements command.UnitOfWork over a pgx transaction.
type UnitOfWork struct {
	tx   pgx.Tx
	done bool

	students    *StudentRepository
	progress    *ProgressRepository
	ledger      *LedgerRepository
	rewards     *RewardRepository
	redemptions *RedemptionRepository
}

// Students returns the student repository bound to this transaction.
func (u *UnitOfWork) Students() student.Repository { return u.students }

// Progress returns the completion record repository bound to this transaction.
func (u *UnitOfWork) Progress() progress.Repository { return u.progress }

// Ledger returns the star journal bound to this transaction.
func (u *UnitOfWork) Ledger() progress.LedgerRepository { return u.ledger }

// Rewards returns the reward catalog repository bound to this transaction.
func (u *UnitOfWork) Rewards() reward.Repository { return u.rewards }

// Redemptions returns the redemption repository bound to this transaction.
func (u *UnitOfWork) Redemptions() reward.RedemptionRepository { return u.redemptions }

// Commit commits the transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return ErrTransactionFailed
	}
	u.done = true
	return u.tx.Commit(ctx)
}

// Rollback aborts the transaction. Safe to call after Commit.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// UnitOfWorkFactory implements command.UnitOfWorkFactory.
type UnitOfWorkFactory struct {
	conn *Connection
}

// NewUnitOfWorkFactory creates a new factory over the shared connection.
func NewUnitOfWorkFactory(conn *Connection) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{conn: conn}
}

// Begin starts a transaction and binds all repositories to it.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (command.UnitOfWork, error) {
	tx, err := f.conn.BeginTx(ctx, DefaultTxOptions())
	if err != nil {
		return nil, err
	}

	return &UnitOfWork{
		tx:          tx,
		students:    NewStudentRepository(tx),
		progress:    NewProgressRepository(tx),
		ledger:      NewLedgerRepository(tx),
		rewards:     NewRewardRepository(tx),
		redemptions: NewRedemptionRepository(tx),
	}, nil
}
