package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// Name identifies the dialect in logs and backups
	Name() string

	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// LockClause is appended to SELECTs that read a row before mutating it in a transaction
	LockClause() string

	// IsUniqueViolation reports whether err is a unique constraint violation
	IsUniqueViolation(err error) bool

	// UpsertGlobalScoreQuery adds to the score of a (user_id, period) row, creating it when missing.
	// Args: user_id, period, score, created_at, updated_at.
	UpsertGlobalScoreQuery() string

	// UpsertRiddleStatsQuery replaces the rolling completion aggregate of a riddle.
	// Args: riddle_id, completions, avg_duration, updated_at.
	UpsertRiddleStatsQuery() string

	// InsertMissingRiddleStatsQuery creates an empty aggregate row for a riddle and leaves an
	// existing one untouched, so the row can be locked before it is first written.
	// Args: riddle_id, updated_at.
	InsertMissingRiddleStatsQuery() string

	// ResetSequenceQuery realigns the id sequence of table after rows were inserted
	// with explicit ids. Empty when the database tracks this itself.
	ResetSequenceQuery(table string) string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
