package lookup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// A table is authored in one of two shapes:
//
//	{"chanel": "Chanel", "CHANEL PARIS": "Chanel"}                     // flat
//	[{"canonical": "Chanel", "aliases": ["chanel", "CHANEL PARIS"]}]  // grouped
//
// Both decode to the same Table. Encoding always produces the grouped shape.

var errTableShape = errors.New("lookup table must be an object of alias/canonical pairs or a list of {canonical, aliases} groups")

// UnmarshalJSON decodes either authored shape. The flat shape is read token by
// token so a repeated alias is seen instead of being overwritten by the map
// decoder.
func (t *Table) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = *NewTable()
		return nil
	}
	nt := NewTable()
	switch b[0] {
	case '{':
		if err := decodeFlatJSON(nt, b); err != nil {
			return err
		}
	case '[':
		var groups []Group
		if err := json.Unmarshal(b, &groups); err != nil {
			return fmt.Errorf("lookup: decode groups: %w", err)
		}
		if err := nt.addGroups(groups); err != nil {
			return err
		}
	default:
		return errTableShape
	}
	*t = *nt
	return nil
}

func decodeFlatJSON(t *Table, b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("lookup: %w", err)
		}
		alias, _ := tok.(string)
		var canonical string
		if err := dec.Decode(&canonical); err != nil {
			return fmt.Errorf("lookup: alias %q: canonical must be a string: %w", alias, err)
		}
		t.Add(alias, canonical)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	return nil
}

func (t *Table) addGroups(groups []Group) error {
	for i, g := range groups {
		if g.Canonical == "" {
			return fmt.Errorf("lookup: group %d: canonical must not be empty", i)
		}
		for _, a := range g.Aliases {
			t.Add(a, g.Canonical)
		}
	}
	return nil
}

// MarshalJSON encodes the grouped shape.
func (t *Table) MarshalJSON() ([]byte, error) {
	groups := t.Groups()
	if groups == nil {
		groups = []Group{}
	}
	return json.Marshal(groups)
}

// UnmarshalYAML decodes either authored shape. Mapping nodes are walked
// directly so duplicate aliases are reported as conflicts.
func (t *Table) UnmarshalYAML(n *yaml.Node) error {
	nt := NewTable()
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("lookup: line %d: alias %q: canonical must be a scalar", v.Line, k.Value)
			}
			nt.Add(k.Value, v.Value)
		}
	case yaml.SequenceNode:
		var groups []Group
		if err := n.Decode(&groups); err != nil {
			return fmt.Errorf("lookup: decode groups: %w", err)
		}
		if err := nt.addGroups(groups); err != nil {
			return err
		}
	case yaml.ScalarNode:
		if n.Tag != "!!null" {
			return errTableShape
		}
	default:
		return errTableShape
	}
	*t = *nt
	return nil
}

// MarshalYAML encodes the grouped shape.
func (t *Table) MarshalYAML() (any, error) {
	groups := t.Groups()
	if groups == nil {
		groups = []Group{}
	}
	return groups, nil
}
