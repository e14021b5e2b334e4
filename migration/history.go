package migration

import (
	"context"
	"database/sql"
	"time"

	"github.com/mulertech/database/driver"
	"github.com/mulertech/database/schema"
)

// historyTable is the reserved bookkeeping table MigrationEngine reads
// and writes; it is the same name SchemaIntrospector excludes from
// introspection (schema.MigrationHistoryTable).
const historyTable = schema.MigrationHistoryTable

// ensureHistoryTableSQL creates the bookkeeping table on first use,
// matching §6's literal DDL: a surrogate auto-increment id as primary
// key, version indexed but not unique-constrained, executed_at defaulting
// to the moment the row is inserted, execution_time defaulting to 0.
func ensureHistoryTableSQL() string {
	return "CREATE TABLE IF NOT EXISTS " + quoteIdentifier(historyTable) + " (\n" +
		"  " + quoteIdentifier("id") + " INT UNSIGNED NOT NULL AUTO_INCREMENT,\n" +
		"  " + quoteIdentifier("version") + " VARCHAR(13) NOT NULL,\n" +
		"  " + quoteIdentifier("executed_at") + " DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
		"  " + quoteIdentifier("execution_time") + " INT UNSIGNED NOT NULL DEFAULT 0,\n" +
		"  PRIMARY KEY (" + quoteIdentifier("id") + "),\n" +
		"  KEY " + quoteIdentifier("idx_migration_history_version") + " (" + quoteIdentifier("version") + ")\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;"
}

// historyRow is one applied-migration record.
type historyRow struct {
	Version       string
	ExecutedAt    time.Time
	ExecutionTime time.Duration
}

func insertHistorySQL() string {
	return "INSERT INTO " + quoteIdentifier(historyTable) + " (" +
		quoteIdentifier("version") + ", " + quoteIdentifier("executed_at") + ", " + quoteIdentifier("execution_time") +
		") VALUES (?, ?, ?);"
}

func deleteHistorySQL() string {
	return "DELETE FROM " + quoteIdentifier(historyTable) + " WHERE " + quoteIdentifier("version") + " = ?;"
}

// appliedVersions returns every version recorded in history, as a set.
func appliedVersions(ctx context.Context, conn driver.Connection) (map[string]bool, error) {
	rows, err := conn.Query(ctx, "SELECT "+quoteIdentifier("version")+" FROM "+quoteIdentifier(historyTable)+" ORDER BY "+quoteIdentifier("version")+";")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// lastAppliedVersion returns the most recently applied version, or
// ("", sql.ErrNoRows) when history is empty.
func lastAppliedVersion(ctx context.Context, conn driver.Connection) (string, error) {
	rows, err := conn.Query(ctx, "SELECT "+quoteIdentifier("version")+" FROM "+quoteIdentifier(historyTable)+
		" ORDER BY "+quoteIdentifier("id")+" DESC LIMIT 1;")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", sql.ErrNoRows
	}
	var v string
	if err := rows.Scan(&v); err != nil {
		return "", err
	}
	return v, rows.Err()
}
