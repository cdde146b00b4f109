package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
)

func TestMapper(t *testing.T) {
	m := NewMapper(config.DBConfig{
		Columns: []string{"brand", "size", "unit"},
		Fields:  map[string]string{"brand": "Product.Brand", "unit": ""},
	})
	assert.Equal(t, []string{"brand", "size", "unit"}, m.Columns())

	tests := []struct {
		name  string
		rec   map[string]string
		want  []any
		empty bool
	}{
		{
			name: "mapped and same-name fields",
			rec:  map[string]string{"Product.Brand": "Dior", "size": "100", "unit": "ml"},
			want: []any{"Dior", "100", "ml"},
		},
		{
			name: "missing fields are nil",
			rec:  map[string]string{"size": ""},
			want: []any{nil, "", nil},
		},
		{
			name:  "unrelated fields only",
			rec:   map[string]string{"brand": "ignored"},
			want:  []any{nil, nil, nil},
			empty: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Row(tt.rec))
			assert.Equal(t, tt.empty, m.Empty(tt.rec))
		})
	}
}
