// Package ddl defines a small, backend-agnostic model for the destination
// table of a run and renders CREATE TABLE statements for a SQL dialect.
//
// Output records are flat string maps, so tables created here hold nullable
// text columns only; backends pick the text type and identifier quoting.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef describes a single column. Name is unquoted; quoting happens at
// render time. Default is emitted as raw SQL.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the dotted table name (e.g. "schema.table") and its
// ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect tells BuildCreateTableSQL how to spell a statement.
type Dialect struct {
	// Name prefixes error messages ("sqlite", "postgres", ...).
	Name string
	// Quote quotes one identifier segment.
	Quote func(string) string
	// IfNotExists emits CREATE TABLE IF NOT EXISTS.
	IfNotExists bool
}

// TextTable returns a table of nullable columns of textType, in order.
func TextTable(fqn string, columns []string, textType string) TableDef {
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(columns))}
	for i, c := range columns {
		t.Columns[i] = ColumnDef{Name: c, SQLType: textType, Nullable: true}
	}
	return t
}

// QuoteFQN quotes each dotted segment of fqn with quote, skipping empty
// segments.
func QuoteFQN(fqn string, quote func(string) string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, quote(p))
		}
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders:
//
//	CREATE TABLE [IF NOT EXISTS] <fqn> (
//	  <col> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...
//	  [PRIMARY KEY (<pk>, ...)]
//	);
//
// Primary-key columns are always NOT NULL.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}
	quote := d.Quote
	if quote == nil {
		quote = func(s string) string { return s }
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s missing SQLType", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
		if c.PrimaryKey {
			pks = append(pks, quote(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	create := "CREATE TABLE "
	if d.IfNotExists {
		create += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", create, QuoteFQN(fqn, quote), strings.Join(cols, ",\n  ")), nil
}
