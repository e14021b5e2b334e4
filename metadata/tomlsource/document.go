package tomlsource

// table maps [[tables]].
type table struct {
	Name        string      `toml:"name"`
	Comment     string      `toml:"comment"`
	Engine      string      `toml:"engine"`
	Charset     string      `toml:"charset"`
	Collation   string      `toml:"collation"`
	AutoIncr    uint64      `toml:"auto_increment"`
	Columns     []column    `toml:"columns"`
	ForeignKeys []foreignKey `toml:"foreign_keys"`
	Indexes     []index     `toml:"indexes"`
}

// column maps [[tables.columns]].
type column struct {
	Name          string   `toml:"name"`
	Type          string   `toml:"type"`
	Length        int      `toml:"length"`
	Precision     int      `toml:"precision"`
	Scale         int      `toml:"scale"`
	Nullable      bool     `toml:"nullable"`
	Unsigned      bool     `toml:"unsigned"`
	PrimaryKey    bool     `toml:"primary_key"`
	AutoIncrement bool     `toml:"auto_increment"`
	Unique        bool     `toml:"unique"`

	// Default accepts string, bool, or number from TOML; normalizeDefault
	// renders it to the string schema.Column.Default expects.
	Default any `toml:"default"`
	// OnUpdate is a raw expression (e.g. "CURRENT_TIMESTAMP"), not a
	// referential action - that one lives on the foreign_keys table below.
	OnUpdate string `toml:"on_update"`

	Comment    string   `toml:"comment"`
	Collation  string   `toml:"collation"`
	EnumValues []string `toml:"values"`
}

// foreignKey maps [[tables.foreign_keys]].
type foreignKey struct {
	Name              string `toml:"name"`
	Column            string `toml:"column"`
	ReferencedTable   string `toml:"referenced_table"`
	ReferencedColumn  string `toml:"referenced_column"`
	OnDelete          string `toml:"on_delete"`
	OnUpdate          string `toml:"on_update"`
}

// index maps [[tables.indexes]].
type index struct {
	Name    string   `toml:"name"`
	Columns []string `toml:"columns"`
	Unique  bool     `toml:"unique"`
	Type    string   `toml:"type"`
}
