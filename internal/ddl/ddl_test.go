package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dq(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

// TestBuildCreateTableSQL verifies rendering and the input checks.
func TestBuildCreateTableSQL(t *testing.T) {
	pg := Dialect{Name: "postgres", Quote: dq, IfNotExists: true}

	tests := []struct {
		name        string
		def         TableDef
		dialect     Dialect
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			dialect:     pg,
			errContains: "postgres ddl: table FQN must not be empty",
		},
		{
			name:        "no columns",
			def:         TableDef{FQN: "t"},
			dialect:     pg,
			errContains: "at least one column is required",
		},
		{
			name:        "empty column name",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{SQLType: "INT"}}},
			dialect:     pg,
			errContains: "column with empty name",
		},
		{
			name:        "missing type",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			dialect:     pg,
			errContains: "column id missing SQLType",
		},
		{
			name:    "text table with quoting",
			def:     TextTable("public.products", []string{"brand", `odd"name`}, "TEXT"),
			dialect: pg,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"public\".\"products\" (\n" +
				"  \"brand\" TEXT,\n" +
				"  \"odd\"\"name\" TEXT\n);",
		},
		{
			name: "primary key and default without quoting",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "INT", Nullable: true, PrimaryKey: true},
				{Name: "v", SQLType: "TEXT", Nullable: true, Default: "'x'"},
			}},
			dialect: Dialect{Name: "generic"},
			wantSQL: "CREATE TABLE t (\n  id INT NOT NULL,\n  v TEXT DEFAULT 'x',\n  PRIMARY KEY (id)\n);",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildCreateTableSQL(tt.def, tt.dialect)
			if tt.errContains != "" {
				assert.ErrorContains(t, err, tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got)
		})
	}
}

func TestQuoteFQN(t *testing.T) {
	assert.Equal(t, `"a"."b"`, QuoteFQN("a. b", dq))
	assert.Equal(t, `"t"`, QuoteFQN(".t.", dq))
}
