package migration

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

// migrationFileTemplate renders a generated migration as a standalone Go
// source file that self-registers via init(), the same discovery shape
// the teacher's cmd/smf uses for its generated output, generalized from
// writing a raw .sql file to writing a .go source file since this
// module's migrations are themselves Go values, not files the engine
// shells out to.
var migrationFileTemplate = template.Must(template.New("migration").Parse(`// Code generated by migration.Engine.Generate. DO NOT EDIT.

package migrations

import "github.com/mulertech/database/migration"

func init() {
	migration.Register("{{.Version}}", &migration.SQLMigration{
		UpStatements: []string{
{{- range .Up}}
			{{printf "%q" .}},
{{- end}}
		},
		DownStatements: []string{
{{- range .Down}}
			{{printf "%q" .}},
{{- end}}
		},
	})
}
`))

type migrationFileData struct {
	Version string
	Up      []string
	Down    []string
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func slugify(label string) string {
	if label == "" {
		return "migration"
	}
	s := nonAlnum.ReplaceAllString(strings.ToLower(label), "_")
	return strings.Trim(s, "_")
}

// writeMigrationFile renders plan into a Go source file named
// {version}_{slug(label)}.go under dir and writes it, returning the path.
func writeMigrationFile(dir, version, label string, plan *Plan) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := migrationFileTemplate.Execute(&buf, migrationFileData{Version: version, Up: plan.UpStatements(), Down: plan.DownStatements()}); err != nil {
		return "", err
	}

	source := buf.Bytes()
	if formatted, err := format.Source(source); err == nil {
		source = formatted
	}

	path := filepath.Join(dir, version+"_"+slugify(label)+".go")
	if err := os.WriteFile(path, source, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
