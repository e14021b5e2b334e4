package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsInvalidVersionFormat(t *testing.T) {
	r := NewRegistry()
	err := r.Register("not-a-version", &SQLMigration{})
	require.Error(t, err)
}

func TestRegistryRejectsDuplicateVersion(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("202601010000", &SQLMigration{}))
	err := r.Register("202601010000", &SQLMigration{})
	require.Error(t, err)
}

func TestRegistryVersionsSortedAscending(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("202603010000", &SQLMigration{}))
	require.NoError(t, r.Register("202601010000", &SQLMigration{}))
	require.NoError(t, r.Register("202602010000", &SQLMigration{}))

	assert.Equal(t, []string{"202601010000", "202602010000", "202603010000"}, r.Versions())
}

func TestPlanPairsUpAndDownStatements(t *testing.T) {
	up := []string{"CREATE TABLE `a` (\n  `id` INT NOT NULL\n);"}
	down := []string{"-- destructive: drops table a", "DROP TABLE `a`;"}

	plan := newPlan(up, down)
	assert.Equal(t, up, plan.UpStatements())
	assert.Equal(t, []string{"DROP TABLE `a`;"}, plan.DownStatements())
	assert.Contains(t, plan.BreakingNotes(), "destructive: drops table a")
	assert.False(t, plan.IsEmpty())
}

func TestPlanIsEmptyWithNoStatements(t *testing.T) {
	plan := newPlan(nil, nil)
	assert.True(t, plan.IsEmpty())
}

func TestPlanStringIncludesBreakingSection(t *testing.T) {
	plan := newPlan([]string{"-- destructive: drops table a", "DROP TABLE `a`;"}, nil)
	rendered := plan.String()
	assert.Contains(t, rendered, "BREAKING CHANGES")
	assert.Contains(t, rendered, "DROP TABLE")
}
