package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
	"github.com/zhuldyz-hub/zhuldyz-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT LEDGER JOB
// Ночная сверка: материализованный баланс каждого ученика должен равняться
// сумме его журнала транзакций. Расхождение означает баг в пути записи и
// требует ручного разбора - задача его не чинит, только сигналит.
// ══════════════════════════════════════════════════════════════════════════════

// AuditLedgerJob verifies star balances against the transaction journal.
type AuditLedgerJob struct {
	studentRepo student.Repository
	ledger      progress.LedgerRepository
	log         *logger.Logger

	timeout time.Duration
}

// NewAuditLedgerJob creates a new ledger audit job.
func NewAuditLedgerJob(
	studentRepo student.Repository,
	ledger progress.LedgerRepository,
	log *logger.Logger,
) *AuditLedgerJob {
	if log == nil {
		log = logger.Default()
	}

	return &AuditLedgerJob{
		studentRepo: studentRepo,
		ledger:      ledger,
		log:         log.With(logger.Component("jobs.audit_ledger")),
		timeout:     5 * time.Minute,
	}
}

// Name returns the job name.
func (j *AuditLedgerJob) Name() string {
	return "audit_ledger"
}

// Description returns a human-readable description.
func (j *AuditLedgerJob) Description() string {
	return "Verifies that every student's star balance matches the sum of their transaction journal"
}

// Run executes the audit.
func (j *AuditLedgerJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	// Архивированные ученики тоже сверяются: их баланс заморожен,
	// но журнал обязан сходиться.
	opts := student.DefaultListOptions().WithLimit(0)
	opts.IncludeInactive = true

	students, err := j.studentRepo.GetAll(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to load students: %w", err)
	}

	var mismatches int
	for _, s := range students {
		sum, err := j.ledger.SumForStudent(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("failed to sum ledger for student %s: %w", s.ID, err)
		}

		if sum != int(s.StarBalance) {
			mismatches++
			j.log.Error("ledger mismatch",
				logger.StudentID(s.ID),
				logger.Balance(int(s.StarBalance)),
				logger.Int("ledger_sum", sum))
		}
	}

	j.log.Info("ledger audit completed",
		logger.Int("students", len(students)),
		logger.Int("mismatches", mismatches))

	if mismatches > 0 {
		return fmt.Errorf("ledger audit found %d mismatches", mismatches)
	}
	return nil
}
