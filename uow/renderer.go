package uow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mulertech/database/metadata"
)

// SqlRenderer renders a scheduled write into executable SQL. Left opaque
// by spec (Non-goals: SQL generation strategy is an external
// collaborator's concern); DefaultRenderer is this module's own plain,
// parameterized implementation.
type SqlRenderer interface {
	RenderInsert(em *metadata.EntityMetadata, values map[string]any) (query string, args []any)
	RenderUpdate(em *metadata.EntityMetadata, pk any, values map[string]any) (query string, args []any)
	RenderDelete(em *metadata.EntityMetadata, pk any) (query string, args []any)
	RenderJoinInsert(joinTable, ownerColumn, targetColumn string, ownerPK, targetPK any) (query string, args []any)
	RenderJoinDelete(joinTable, ownerColumn, targetColumn string, ownerPK, targetPK any) (query string, args []any)
}

// DefaultRenderer renders plain `?`-parameterized MySQL statements,
// grounded on the same backtick-quoting convention the migration
// package's DDL renderer uses (render.go's quoteIdentifier).
type DefaultRenderer struct{}

func quoteIdent(name string) string { return "`" + name + "`" }

func (DefaultRenderer) RenderInsert(em *metadata.EntityMetadata, values map[string]any) (string, []any) {
	cols := sortedKeys(values)
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		placeholders[i] = "?"
		args[i] = values[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", quoteIdent(em.Table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return query, args
}

func (DefaultRenderer) RenderUpdate(em *metadata.EntityMetadata, pk any, values map[string]any) (string, []any) {
	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
		args = append(args, values[c])
	}
	args = append(args, pk)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?;", quoteIdent(em.Table), strings.Join(sets, ", "), quoteIdent(em.PrimaryKey.Column.Name))
	return query, args
}

func (DefaultRenderer) RenderDelete(em *metadata.EntityMetadata, pk any) (string, []any) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?;", quoteIdent(em.Table), quoteIdent(em.PrimaryKey.Column.Name))
	return query, []any{pk}
}

func (DefaultRenderer) RenderJoinInsert(joinTable, ownerColumn, targetColumn string, ownerPK, targetPK any) (string, []any) {
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?);", quoteIdent(joinTable), quoteIdent(ownerColumn), quoteIdent(targetColumn))
	return query, []any{ownerPK, targetPK}
}

func (DefaultRenderer) RenderJoinDelete(joinTable, ownerColumn, targetColumn string, ownerPK, targetPK any) (string, []any) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?;", quoteIdent(joinTable), quoteIdent(ownerColumn), quoteIdent(targetColumn))
	return query, []any{ownerPK, targetPK}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
