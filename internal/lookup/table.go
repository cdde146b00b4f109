// Package lookup holds the named alias → canonical tables used by map actions
// and lookup: patterns.
//
// Tables are case-insensitive: aliases are folded with x/text/cases before
// they are stored or queried. A table is built once from configuration and is
// read-only afterwards; runtime additions go through a Learner instead.
package lookup

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Entry is one alias and the canonical value it resolves to.
type Entry struct {
	Alias     string
	Canonical string
}

// Conflict records an alias that was declared twice with different
// canonicals inside the same table. The first declaration wins.
type Conflict struct {
	Alias  string
	First  string
	Second string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("alias %q maps to both %q and %q", c.Alias, c.First, c.Second)
}

// Table is a case-insensitive alias → canonical map.
type Table struct {
	entries   map[string]Entry
	conflicts []Conflict
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// Fold normalizes s for case-insensitive comparison. Surrounding whitespace
// is not significant.
func Fold(s string) string {
	// Casers keep state and are not safe to share between goroutines.
	return cases.Fold().String(strings.TrimSpace(s))
}

// Add declares alias → canonical. Redeclaring the same pair is a no-op;
// redeclaring the alias with another canonical records a Conflict and keeps
// the first mapping. Empty aliases are ignored.
func (t *Table) Add(alias, canonical string) {
	if t.entries == nil {
		t.entries = make(map[string]Entry)
	}
	alias = strings.TrimSpace(alias)
	canonical = strings.TrimSpace(canonical)
	if alias == "" {
		return
	}
	k := Fold(alias)
	if prev, ok := t.entries[k]; ok {
		if prev.Canonical != canonical {
			t.conflicts = append(t.conflicts, Conflict{Alias: alias, First: prev.Canonical, Second: canonical})
		}
		return
	}
	t.entries[k] = Entry{Alias: alias, Canonical: canonical}
}

// set writes alias → canonical unconditionally. Used when an override table
// replaces a base mapping.
func (t *Table) set(e Entry) {
	if t.entries == nil {
		t.entries = make(map[string]Entry)
	}
	t.entries[Fold(e.Alias)] = e
}

// Resolve returns the canonical for alias. Lookups are case-insensitive.
func (t *Table) Resolve(alias string) (string, bool) {
	if t == nil {
		return "", false
	}
	e, ok := t.entries[Fold(alias)]
	if !ok {
		return "", false
	}
	return e.Canonical, true
}

// Len reports the number of distinct aliases.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Conflicts returns the alias conflicts seen while the table was built.
func (t *Table) Conflicts() []Conflict {
	if t == nil {
		return nil
	}
	out := make([]Conflict, len(t.conflicts))
	copy(out, t.conflicts)
	return out
}

// Entries returns all entries sorted by alias.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Group is the canonical-first shape of a table: one canonical and every
// alias that resolves to it.
type Group struct {
	Canonical string   `json:"canonical" yaml:"canonical"`
	Aliases   []string `json:"aliases" yaml:"aliases"`
}

// Groups returns the table grouped by canonical. Canonicals and aliases are
// sorted alphabetically so the output is stable.
func (t *Table) Groups() []Group {
	if t == nil {
		return nil
	}
	byCanon := make(map[string][]string)
	for _, e := range t.entries {
		byCanon[e.Canonical] = append(byCanon[e.Canonical], e.Alias)
	}
	out := make([]Group, 0, len(byCanon))
	for c, aliases := range byCanon {
		sort.Strings(aliases)
		out = append(out, Group{Canonical: c, Aliases: aliases})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical < out[j].Canonical })
	return out
}

// MissingSelfAliases lists canonicals that are not among their own aliases,
// i.e. the canonical spelling itself would not resolve back to the canonical.
func (t *Table) MissingSelfAliases() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, e := range t.entries {
		if _, dup := seen[e.Canonical]; dup {
			continue
		}
		seen[e.Canonical] = struct{}{}
		if got, ok := t.Resolve(e.Canonical); !ok || got != e.Canonical {
			out = append(out, e.Canonical)
		}
	}
	sort.Strings(out)
	return out
}

// AliasesLongestFirst returns every alias ordered by descending rune length,
// ties broken alphabetically. Regex alternations built from this order prefer
// the longest alias at a given position.
func (t *Table) AliasesLongestFirst() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Alias)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(out[i]), utf8.RuneCountInString(out[j])
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	c := NewTable()
	if t == nil {
		return c
	}
	for k, e := range t.entries {
		c.entries[k] = e
	}
	c.conflicts = append(c.conflicts, t.conflicts...)
	return c
}

// Tables is a set of named tables. Table names are matched exactly.
type Tables map[string]*Table

// Resolve looks alias up in the named table. An unknown table behaves like a
// table without the alias.
func (ts Tables) Resolve(table, alias string) (string, bool) {
	return ts[table].Resolve(alias)
}

// Names returns the table names sorted.
func (ts Tables) Names() []string {
	out := make([]string, 0, len(ts))
	for n := range ts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Merge combines shared tables with per-source overrides into a new set.
// Neither input is modified. When both declare the same alias of the same
// table, the override mapping wins. Conflicts recorded inside either input
// table are carried over.
func Merge(base, override Tables) Tables {
	out := make(Tables, len(base)+len(override))
	for name, t := range base {
		out[name] = t.Clone()
	}
	for name, t := range override {
		dst, ok := out[name]
		if !ok {
			out[name] = t.Clone()
			continue
		}
		for _, e := range t.entries {
			dst.set(e)
		}
		dst.conflicts = append(dst.conflicts, t.conflicts...)
	}
	return out
}
