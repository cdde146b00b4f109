package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
)

// DefaultInput is the workspace key an action reads when Input is empty.
const DefaultInput = "Text"

// Document is the rule document: lookup tables shared by every source plus
// the column rules of each source.
//
//	lookups:
//	  Brand: { chanel: Chanel, "chanel paris": Chanel }
//	sources:
//	  - name: SupplierA
//	    columns:
//	      - column: Description
//	        actions:
//	          - { op: find, output: Product.Brand, assign: true,
//	              parameters: { Pattern: "lookup:Brand", Options: remove } }
type Document struct {
	Lookups lookup.Tables `json:"lookups,omitempty" yaml:"lookups,omitempty"`
	Sources []Source      `json:"sources" yaml:"sources"`
}

// Source holds the rules for one logical input source. Its Lookups override
// shared tables of the same name.
type Source struct {
	Name    string        `json:"name" yaml:"name"`
	Lookups lookup.Tables `json:"lookups,omitempty" yaml:"lookups,omitempty"`
	Columns []ColumnRule  `json:"columns" yaml:"columns"`
}

// ColumnRule is the ordered action pipeline applied to one input column.
type ColumnRule struct {
	// Column is the header name, or a zero-based index when the input has no
	// header.
	Column ColumnRef `json:"column" yaml:"column"`
	// Trace logs every action of this column.
	Trace   bool        `json:"trace,omitempty" yaml:"trace,omitempty"`
	Actions []ActionDef `json:"actions" yaml:"actions"`
}

// ColumnRef names a column. Numbers are accepted and kept as their decimal
// string.
type ColumnRef string

// UnmarshalJSON accepts a string or a number.
func (c *ColumnRef) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Errorf("column must be a name or an index: %w", err)
	}
	*c = ColumnRef(strings.TrimSpace(s))
	return nil
}

// ActionDef is one action as authored. Op-specific settings live in
// Parameters and are checked against the op's allow-list at load.
type ActionDef struct {
	Op         string `json:"op" yaml:"op"`
	Input      string `json:"input,omitempty" yaml:"input,omitempty"`
	Output     string `json:"output,omitempty" yaml:"output,omitempty"`
	Assign     bool   `json:"assign,omitempty" yaml:"assign,omitempty"`
	Condition  string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Parameters Params `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// InputKey returns Input, or DefaultInput when it is empty.
func (a ActionDef) InputKey() string {
	if s := strings.TrimSpace(a.Input); s != "" {
		return s
	}
	return DefaultInput
}

// Params are op parameters. Scalar JSON values ("true", true, 3) are all
// stored as strings.
type Params map[string]string

// UnmarshalJSON coerces scalar values to strings; nested values are an error.
func (p *Params) UnmarshalJSON(b []byte) error {
	if len(bytes.TrimSpace(b)) == 0 || string(bytes.TrimSpace(b)) == "null" {
		*p = Params{}
		return nil
	}
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(Params, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return fmt.Errorf("parameter %q must be a scalar", k)
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = s
	}
	*p = out
	return nil
}

// Keys returns the parameter names sorted.
func (p Params) Keys() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Source returns the source called name. An empty name selects the only
// source of a single-source document. Names match case-insensitively when
// there is no exact match.
func (d *Document) Source(name string) (*Source, error) {
	if name == "" {
		if len(d.Sources) == 1 {
			return &d.Sources[0], nil
		}
		return nil, fmt.Errorf("document declares %d sources; a source name is required", len(d.Sources))
	}
	for i := range d.Sources {
		if d.Sources[i].Name == name {
			return &d.Sources[i], nil
		}
	}
	for i := range d.Sources {
		if strings.EqualFold(d.Sources[i].Name, name) {
			return &d.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

// SourceNames lists the declared source names in document order.
func (d *Document) SourceNames() []string {
	out := make([]string, len(d.Sources))
	for i, s := range d.Sources {
		out[i] = s.Name
	}
	return out
}
