package migration

import (
	"context"
	"fmt"

	"github.com/mulertech/database/driver"
)

// SQLMigration is a Migration whose up/down are plain statement lists,
// the shape Engine.Generate always produces. It also implements
// Previewable, so dry runs over generated migrations can show the exact
// SQL that would execute.
type SQLMigration struct {
	UpStatements   []string
	DownStatements []string
}

func (m *SQLMigration) Up(ctx context.Context, tx driver.Tx) error {
	return execAll(ctx, tx, m.UpStatements)
}

func (m *SQLMigration) Down(ctx context.Context, tx driver.Tx) error {
	return execAll(ctx, tx, m.DownStatements)
}

func (m *SQLMigration) PreviewUp() []string   { return m.UpStatements }
func (m *SQLMigration) PreviewDown() []string { return m.DownStatements }

func execAll(ctx context.Context, tx driver.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
