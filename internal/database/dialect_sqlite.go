package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// SQLiteDialect implements Dialect for SQLite
type SQLiteDialect struct{}

// NewSQLiteDialect creates a new SQLite dialect
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

func (d *SQLiteDialect) DriverName() string {
	return "sqlite3"
}

// DSN enables foreign keys and WAL on every pooled connection. _txlock=immediate takes the
// write lock when a transaction begins, which serialises writers for the whole transaction.
func (d *SQLiteDialect) DSN(config DialectConfig) string {
	return "file:" + config.Path + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate"
}

func (d *SQLiteDialect) RewriteQuery(query string) string {
	return query
}

func (d *SQLiteDialect) SupportsLastInsertId() bool {
	return true
}

func (d *SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (d *SQLiteDialect) MigrationsSubdir() string {
	return "sqlite"
}

func (d *SQLiteDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
}

// LockClause is empty: SQLite has no row locks, the immediate transaction already holds the write lock.
func (d *SQLiteDialect) LockClause() string {
	return ""
}

func (d *SQLiteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (d *SQLiteDialect) UpsertGlobalScoreQuery() string {
	return `INSERT INTO global_scores (user_id, period, score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, period) DO UPDATE
		SET score = global_scores.score + excluded.score, updated_at = excluded.updated_at`
}

func (d *SQLiteDialect) UpsertRiddleStatsQuery() string {
	return `INSERT INTO riddle_stats (riddle_id, completions, avg_duration, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (riddle_id) DO UPDATE
		SET completions = excluded.completions, avg_duration = excluded.avg_duration, updated_at = excluded.updated_at`
}

func (d *SQLiteDialect) InsertMissingRiddleStatsQuery() string {
	return `INSERT INTO riddle_stats (riddle_id, completions, avg_duration, updated_at)
		VALUES (?, 0, 0, ?)
		ON CONFLICT (riddle_id) DO NOTHING`
}

func (d *SQLiteDialect) ResetSequenceQuery(table string) string {
	return ""
}
