package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureHistoryTableSQLMatchesDeclaredSchema(t *testing.T) {
	ddl := ensureHistoryTableSQL()
	assert.Contains(t, ddl, "`id` INT UNSIGNED NOT NULL AUTO_INCREMENT")
	assert.Contains(t, ddl, "`version` VARCHAR(13) NOT NULL")
	assert.Contains(t, ddl, "`executed_at` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP")
	assert.Contains(t, ddl, "`execution_time` INT UNSIGNED NOT NULL DEFAULT 0")
	assert.Contains(t, ddl, "PRIMARY KEY (`id`)")
	assert.Contains(t, ddl, "KEY `idx_migration_history_version` (`version`)")
	assert.NotContains(t, ddl, "PRIMARY KEY (`version`)")
}
