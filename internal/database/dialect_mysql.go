package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

// MySQLDialect implements Dialect for MySQL
type MySQLDialect struct{}

// NewMySQLDialect creates a new MySQL dialect
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

func (d *MySQLDialect) Name() string {
	return "mysql"
}

func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// DSN forces parseTime and UTC so DATETIME columns scan into time.Time.
// An unparsable URL is passed through and left for sql.Open to reject.
func (d *MySQLDialect) DSN(config DialectConfig) string {
	cfg, err := mysql.ParseDSN(config.URL)
	if err != nil {
		return config.URL
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

func (d *MySQLDialect) RewriteQuery(query string) string {
	// MySQL uses ? placeholders like SQLite, no rewrite needed
	return query
}

func (d *MySQLDialect) SupportsLastInsertId() bool {
	return true
}

func (d *MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (d *MySQLDialect) MigrationsSubdir() string {
	return "mysql"
}

func (d *MySQLDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		)
	`
}

func (d *MySQLDialect) LockClause() string {
	return " FOR UPDATE"
}

func (d *MySQLDialect) IsUniqueViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

func (d *MySQLDialect) UpsertGlobalScoreQuery() string {
	return "INSERT INTO global_scores (user_id, period, score, created_at, updated_at) VALUES (?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE score = score + VALUES(score), updated_at = VALUES(updated_at)"
}

func (d *MySQLDialect) UpsertRiddleStatsQuery() string {
	return "INSERT INTO riddle_stats (riddle_id, completions, avg_duration, updated_at) VALUES (?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE completions = VALUES(completions), avg_duration = VALUES(avg_duration), updated_at = VALUES(updated_at)"
}

func (d *MySQLDialect) InsertMissingRiddleStatsQuery() string {
	return "INSERT INTO riddle_stats (riddle_id, completions, avg_duration, updated_at) VALUES (?, 0, 0, ?) " +
		"ON DUPLICATE KEY UPDATE riddle_id = riddle_id"
}

func (d *MySQLDialect) ResetSequenceQuery(table string) string {
	return ""
}
