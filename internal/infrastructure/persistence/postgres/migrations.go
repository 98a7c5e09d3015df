package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Embedded SQL migrations, applied in order and tracked in schema_migrations.
// The balance and stock guards live here as CHECK constraints: the database
// is the last line of defence against a negative star economy.
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}

		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}

			insertQuery := fmt.Sprintf(
				"INSERT INTO %s (version, name) VALUES ($1, $2)",
				m.tableName,
			)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}

	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}

		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_teachers", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_students", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_lessons", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_progress_and_ledger", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_rewards_and_redemptions", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}

const migration001Up = `
CREATE TABLE teachers (
	id            TEXT PRIMARY KEY,
	login         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	role          TEXT NOT NULL DEFAULT 'teacher',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const migration001Down = `DROP TABLE IF EXISTS teachers;`

const migration002Up = `
CREATE TABLE students (
	id           TEXT PRIMARY KEY,
	teacher_id   TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
	display_name TEXT NOT NULL,
	star_balance INTEGER NOT NULL DEFAULT 0 CHECK (star_balance >= 0),
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_students_teacher ON students(teacher_id);
-- Leaderboard ordering: balance descending, earlier registration wins ties.
CREATE INDEX idx_students_leaderboard ON students(star_balance DESC, created_at ASC) WHERE active;
`

const migration002Down = `DROP TABLE IF EXISTS students;`

const migration003Up = `
CREATE TABLE lessons (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	level        INTEGER NOT NULL CHECK (level >= 1),
	lesson_order INTEGER NOT NULL CHECK (lesson_order >= 1),
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (level, lesson_order)
);
`

const migration003Down = `DROP TABLE IF EXISTS lessons;`

const migration004Up = `
CREATE TABLE progress_records (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	lesson_id    TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	teacher_id   TEXT NOT NULL,
	stars_earned INTEGER NOT NULL CHECK (stars_earned BETWEEN 1 AND 5),
	notes        TEXT NOT NULL DEFAULT '',
	completed_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (student_id, lesson_id)
);

CREATE INDEX idx_progress_student ON progress_records(student_id);
CREATE INDEX idx_progress_completed_at ON progress_records(completed_at);

CREATE TABLE star_transactions (
	id           TEXT PRIMARY KEY,
	student_id   TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	amount       INTEGER NOT NULL CHECK (amount <> 0),
	kind         TEXT NOT NULL CHECK (kind IN ('earn', 'adjust', 'spend', 'refund')),
	reference_id TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_star_tx_student ON star_transactions(student_id, created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS star_transactions;
DROP TABLE IF EXISTS progress_records;
`

const migration005Up = `
CREATE TABLE rewards (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	cost       INTEGER NOT NULL CHECK (cost >= 1),
	stock      INTEGER NOT NULL CHECK (stock >= -1),
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE redemptions (
	id              TEXT PRIMARY KEY,
	student_id      TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	reward_id       TEXT NOT NULL REFERENCES rewards(id),
	teacher_id      TEXT NOT NULL,
	quantity        INTEGER NOT NULL CHECK (quantity >= 1),
	stars_cost      INTEGER NOT NULL CHECK (stars_cost >= 1),
	status          TEXT NOT NULL CHECK (status IN ('pending', 'delivered', 'cancelled')),
	idempotency_key TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_redemptions_student ON redemptions(student_id, created_at DESC);
-- One idempotency key commits exactly once; empty keys are not constrained.
CREATE UNIQUE INDEX idx_redemptions_idem_key ON redemptions(idempotency_key) WHERE idempotency_key <> '';
`

const migration005Down = `
DROP TABLE IF EXISTS redemptions;
DROP TABLE IF EXISTS rewards;
`
