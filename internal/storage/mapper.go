package storage

import "github.com/TheStrul/Sacks-new-sub004/internal/config"

// Mapper turns output records into rows aligned to the destination columns.
type Mapper struct {
	columns []string
	fields  []string
}

// NewMapper builds a Mapper from db: each column reads the record field named
// by db.Fields, or the field of the same name.
func NewMapper(db config.DBConfig) Mapper {
	m := Mapper{
		columns: append([]string(nil), db.Columns...),
		fields:  make([]string, len(db.Columns)),
	}
	for i, c := range db.Columns {
		m.fields[i] = db.Field(c)
	}
	return m
}

// Columns returns the destination columns in load order.
func (m Mapper) Columns() []string { return m.columns }

// Row maps rec to a row. Missing fields are nil (NULL).
func (m Mapper) Row(rec map[string]string) []any {
	row := make([]any, len(m.fields))
	for i, f := range m.fields {
		if v, ok := rec[f]; ok {
			row[i] = v
		}
	}
	return row
}

// Empty reports whether rec feeds none of the mapped columns.
func (m Mapper) Empty(rec map[string]string) bool {
	for _, f := range m.fields {
		if _, ok := rec[f]; ok {
			return false
		}
	}
	return true
}
