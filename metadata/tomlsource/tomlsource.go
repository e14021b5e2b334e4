// Package tomlsource is an optional declarative schema source: it reads a
// TOML document describing tables, columns, foreign keys, and indexes and
// produces the same schema.Database shape the MetadataRegistry assembles
// from struct tags (metadata.EntityMetadata.Schema).
//
// It exists for callers who would rather hand-author a schema file than
// tag Go structs, and for migration:generate runs against a schema that
// has no corresponding entity types yet. Structurally it follows the
// teacher's internal/parser/toml package - the same [[tables]] /
// [[tables.columns]] document shape decoded with
// github.com/BurntSushi/toml - simplified to the MySQL-family-only
// schema.Database this module shares between declared and introspected
// schemas, instead of the teacher's multi-dialect core.Database.
package tomlsource

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mulertech/database/schema"
)

// document is the top-level TOML document.
type document struct {
	Database database `toml:"database"`
	Tables   []table  `toml:"tables"`
}

// database maps [database].
type database struct {
	Name    string `toml:"name"`
	Charset string `toml:"charset"`
}

// Parser reads declarative TOML schema files.
type Parser struct{}

// NewParser creates a new TOML schema parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile opens the file at path and parses it as a declarative schema.
func (p *Parser) ParseFile(path string) (*schema.Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tomlsource: open file %q: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse reads TOML content from r and returns the corresponding
// schema.Database.
func (p *Parser) Parse(r io.Reader) (*schema.Database, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("tomlsource: decode error: %w", err)
	}

	db, err := newConverter(&doc).convert()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(db); err != nil {
		return nil, fmt.Errorf("tomlsource: %w", err)
	}
	return db, nil
}
