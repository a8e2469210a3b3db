package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestDialectBasics(t *testing.T) {
	tests := []struct {
		dialect         Dialect
		name            string
		driver          string
		lastInsertID    bool
		lockClause      string
		resetsSequences bool
	}{
		{NewSQLiteDialect(), "sqlite", "sqlite3", true, "", false},
		{NewPostgresDialect(), "postgres", "postgres", false, " FOR UPDATE", true},
		{NewMySQLDialect(), "mysql", "mysql", true, " FOR UPDATE", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.dialect.Name())
			assert.Equal(t, tt.driver, tt.dialect.DriverName())
			assert.Equal(t, tt.name, tt.dialect.MigrationsSubdir())
			assert.Equal(t, tt.lastInsertID, tt.dialect.SupportsLastInsertId())
			assert.Equal(t, tt.lockClause, tt.dialect.LockClause())
			assert.Equal(t, tt.resetsSequences, tt.dialect.ResetSequenceQuery("game_sessions") != "")
		})
	}
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM game_sessions WHERE id = ?",
			expected: "SELECT * FROM game_sessions WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM game_sessions WHERE id = ?",
			expected: "SELECT * FROM game_sessions WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "UPDATE game_sessions SET score = ? WHERE id = ? AND version = ?",
			expected: "UPDATE game_sessions SET score = $1 WHERE id = $2 AND version = $3",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE session_steps SET extra_hints = ? WHERE id = ?",
			expected: "UPDATE session_steps SET extra_hints = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.RewriteQuery(tt.query))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		err      error
		expected bool
	}{
		{"sqlite unique", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite foreign key", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, false},
		{"postgres unique wrapped", NewPostgresDialect(), fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"postgres check", NewPostgresDialect(), &pq.Error{Code: "23514"}, false},
		{"mysql duplicate", NewMySQLDialect(), &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", NewMySQLDialect(), &mysql.MySQLError{Number: 1452}, false},
		{"plain error", NewSQLiteDialect(), errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.IsUniqueViolation(tt.err))
		})
	}
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn := NewMySQLDialect().DSN(DialectConfig{URL: "hunt:secret@tcp(localhost:3306)/riddlehunt"})

	cfg, err := mysql.ParseDSN(dsn)
	assert.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, "UTC", cfg.Loc.String())
	assert.Equal(t, "riddlehunt", cfg.DBName)
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (id INTEGER);

-- another
CREATE INDEX idx_a ON a(id);
`
	stmts := splitStatements(content)
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx_a ON a(id)"}, stmts)
}

func TestInsertMissingRiddleStatsKeepsExistingRow(t *testing.T) {
	tests := []struct {
		dialect Dialect
		keeps   string
	}{
		{NewSQLiteDialect(), "DO NOTHING"},
		{NewPostgresDialect(), "DO NOTHING"},
		{NewMySQLDialect(), "riddle_id = riddle_id"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			query := tt.dialect.InsertMissingRiddleStatsQuery()
			assert.Contains(t, query, "INSERT INTO riddle_stats")
			assert.Contains(t, query, tt.keeps)
			assert.Equal(t, 2, strings.Count(query, "?"))
		})
	}
}
