package sietch

import (
	"context"
	"fmt"
	"strings"
)

// ColumnType represents SQL column data types
type ColumnType string

const (
	ColumnTypeInteger   ColumnType = "INTEGER"
	ColumnTypeBigInt    ColumnType = "BIGINT"
	ColumnTypeText      ColumnType = "TEXT"
	ColumnTypeVarchar   ColumnType = "VARCHAR"
	ColumnTypeBoolean   ColumnType = "BOOLEAN"
	ColumnTypeJSON      ColumnType = "JSONB"
	ColumnTypeFloat     ColumnType = "FLOAT8"
	ColumnTypeNumeric   ColumnType = "NUMERIC"
	ColumnTypeTimestamp ColumnType = "TIMESTAMP"
)

// IndexType represents different types of database indexes
type IndexType string

const (
	IndexTypeBTree IndexType = "BTREE"
	IndexTypeHash  IndexType = "HASH"
	IndexTypeGin   IndexType = "GIN"
)

// ColumnDef defines a table column
type ColumnDef struct {
	Name         string
	Type         ColumnType
	PrimaryKey   bool
	NotNull      bool
	Unique       bool
	DefaultValue string
	Check        string

	// References names the table whose "id" this column points to
	References string
}

// IndexDef defines a table index
type IndexDef struct {
	Name    string
	Type    IndexType
	Columns []string
	Unique  bool
	Where   string // Partial index condition
}

// TableDef defines a complete table schema
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Indexes []IndexDef
}

// EnvelopeColumns returns the bookkeeping columns every record table carries.
// Timestamps are unix seconds.
func EnvelopeColumns() []ColumnDef {
	return []ColumnDef{
		{Name: "id", Type: ColumnTypeBigInt, PrimaryKey: true},
		{Name: "authorId", Type: ColumnTypeBigInt},
		{Name: "companyId", Type: ColumnTypeBigInt},
		{Name: "createdAt", Type: ColumnTypeBigInt},
		{Name: "updatedAt", Type: ColumnTypeBigInt, NotNull: true},
		{Name: "deletedAt", Type: ColumnTypeBigInt},
	}
}

// NewTableDef builds a table with the envelope columns followed by columns
func NewTableDef(name string, columns ...ColumnDef) *TableDef {
	return &TableDef{
		Name:    name,
		Columns: append(EnvelopeColumns(), columns...),
	}
}

// Validate checks every identifier in the definition
func (d *TableDef) Validate() error {
	if err := sanitizeIdentifier(d.Name); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}
	if _, ok := d.Column("id"); !ok {
		return fmt.Errorf("table %s has no id column", d.Name)
	}
	for _, col := range d.Columns {
		if err := sanitizeIdentifier(col.Name); err != nil {
			return fmt.Errorf("invalid column name '%s': %w", col.Name, err)
		}
	}
	for _, idx := range d.Indexes {
		for _, col := range idx.Columns {
			if _, ok := d.Column(col); !ok {
				return fmt.Errorf("index %s: %w: %s", idx.Name, ErrUnknownColumn, col)
			}
		}
	}
	return nil
}

// Column looks a column up by name
func (d *TableDef) Column(name string) (ColumnDef, bool) {
	for _, col := range d.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDef{}, false
}

// ColumnNames returns the column names in declaration order
func (d *TableDef) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		names[i] = col.Name
	}
	return names
}

// UniqueSets returns every group of columns whose combined values must be unique,
// the primary key included
func (d *TableDef) UniqueSets() []IndexDef {
	var sets []IndexDef
	for _, col := range d.Columns {
		switch {
		case col.PrimaryKey:
			sets = append(sets, IndexDef{Name: d.Name + "_pkey", Columns: []string{col.Name}, Unique: true})
		case col.Unique:
			sets = append(sets, IndexDef{Name: d.Name + "_" + col.Name + "_key", Columns: []string{col.Name}, Unique: true})
		}
	}
	for _, idx := range d.Indexes {
		if idx.Unique && idx.Where == "" {
			sets = append(sets, idx)
		}
	}
	return sets
}

// ForeignKeys returns the columns that reference another table
func (d *TableDef) ForeignKeys() []ColumnDef {
	var fks []ColumnDef
	for _, col := range d.Columns {
		if col.References != "" {
			fks = append(fks, col)
		}
	}
	return fks
}

// GenerateCreateTableSQL generates CREATE TABLE SQL from table definition
func GenerateCreateTableSQL(def *TableDef) string {
	var parts []string

	for _, col := range def.Columns {
		colDef := fmt.Sprintf(`%s %s`, quoteIdentifier(col.Name), col.Type)

		if col.PrimaryKey {
			colDef += " PRIMARY KEY"
		}
		if col.NotNull && !col.PrimaryKey {
			colDef += " NOT NULL"
		}
		if col.Unique && !col.PrimaryKey {
			colDef += " UNIQUE"
		}
		if col.DefaultValue != "" {
			colDef += " DEFAULT " + col.DefaultValue
		}
		if col.Check != "" {
			colDef += " CHECK (" + col.Check + ")"
		}
		if col.References != "" {
			colDef += fmt.Sprintf(" REFERENCES %s (%s)", quoteIdentifier(col.References), quoteIdentifier("id"))
		}

		parts = append(parts, colDef)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteIdentifier(def.Name),
		strings.Join(parts, ",\n  "),
	)
}

// GenerateCreateIndexSQL generates CREATE INDEX SQL from index definition
func GenerateCreateIndexSQL(tableName string, idx *IndexDef) string {
	uniqueClause := ""
	if idx.Unique {
		uniqueClause = "UNIQUE "
	}
	indexType := idx.Type
	if indexType == "" {
		indexType = IndexTypeBTree
	}

	sql := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s USING %s (%s)",
		uniqueClause,
		quoteIdentifier(idx.Name),
		quoteIdentifier(tableName),
		indexType,
		joinQuotedColumns(idx.Columns),
	)

	if idx.Where != "" {
		sql += " WHERE " + idx.Where
	}

	return sql
}

// CreateTable creates the table and its indexes if they do not exist.
// This is meant for tests and local development.
func CreateTable(ctx context.Context, db Queryable, def *TableDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, err := db.Exec(ctx, GenerateCreateTableSQL(def)); err != nil {
		return err
	}
	for i := range def.Indexes {
		if _, err := db.Exec(ctx, GenerateCreateIndexSQL(def.Name, &def.Indexes[i])); err != nil {
			return err
		}
	}
	return nil
}
