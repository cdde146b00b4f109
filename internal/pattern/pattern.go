// Package pattern turns find-action pattern parameters into compiled
// regular expressions.
//
// Three forms are supported:
//
//	Pattern:    `\d+(?=ML)`       literal expression
//	Pattern:    `lookup:Brand`    alternation of every alias of a table
//	PatternKey: `Product.Brand`   workspace value, matched literally as a token
//
// Expressions use github.com/dlclark/regexp2 so lookaround and (?<name>...)
// groups are available. Compiled expressions are cached in a ristretto cache
// shared by all rows.
package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dlclark/regexp2"

	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
)

// LookupPrefix introduces a table reference in a Pattern parameter.
const LookupPrefix = "lookup:"

// Token boundaries used around lookup alternations and indirect values.
const (
	tokenStart = `(?<![\w])`
	tokenEnd   = `(?![\w])`
	neverMatch = `(?!)`
)

// DefaultMatchTimeout bounds a single match attempt.
const DefaultMatchTimeout = 250 * time.Millisecond

var (
	// ErrEmptyPattern is returned when an indirect pattern reads an empty or
	// absent workspace value.
	ErrEmptyPattern = errors.New("pattern: empty indirect value")
	// ErrUnknownTable is returned for lookup: references to missing tables.
	ErrUnknownTable = errors.New("pattern: unknown lookup table")
)

// Kind identifies where a pattern comes from.
type Kind int

const (
	Literal Kind = iota
	Lookup
	Indirect
)

func (k Kind) String() string {
	switch k {
	case Lookup:
		return "lookup"
	case Indirect:
		return "indirect"
	default:
		return "literal"
	}
}

// Spec is a parsed pattern reference.
type Spec struct {
	Kind Kind
	// Source is the expression (Literal), the table name (Lookup) or the
	// workspace key (Indirect).
	Source     string
	IgnoreCase bool
}

// ParseSpec builds a Spec from the Pattern and PatternKey parameters. Exactly
// one of them must be set. Lookup patterns always ignore case.
func ParseSpec(pattern, patternKey string, ignoreCase bool) (Spec, error) {
	switch {
	case pattern != "" && patternKey != "":
		return Spec{}, errors.New("Pattern and PatternKey are mutually exclusive")
	case patternKey != "":
		return Spec{Kind: Indirect, Source: patternKey, IgnoreCase: ignoreCase}, nil
	case pattern == "":
		return Spec{}, errors.New("one of Pattern or PatternKey is required")
	}
	if len(pattern) >= len(LookupPrefix) && strings.EqualFold(pattern[:len(LookupPrefix)], LookupPrefix) {
		name := strings.TrimSpace(pattern[len(LookupPrefix):])
		if name == "" {
			return Spec{}, errors.New("lookup: pattern is missing a table name")
		}
		return Spec{Kind: Lookup, Source: name, IgnoreCase: true}, nil
	}
	return Spec{Kind: Literal, Source: pattern, IgnoreCase: ignoreCase}, nil
}

// Getter reads workspace values for indirect patterns.
type Getter interface {
	Value(key string) string
}

// Resolver compiles Specs against a fixed set of lookup tables. Lookup
// alternations are compiled once up front; literal and indirect expressions
// go through the cache.
type Resolver struct {
	tables  lookup.Tables
	lookups map[string]*regexp2.Regexp
	cache   *ristretto.Cache[string, *regexp2.Regexp]
	timeout time.Duration
}

// Option configures a Resolver.
type Option func(*resolverOptions)

type resolverOptions struct {
	timeout  time.Duration
	maxItems int64
}

// WithMatchTimeout overrides DefaultMatchTimeout. Zero disables the timeout.
func WithMatchTimeout(d time.Duration) Option {
	return func(o *resolverOptions) { o.timeout = d }
}

// WithCacheSize bounds the number of cached expressions.
func WithCacheSize(n int64) Option {
	return func(o *resolverOptions) {
		if n > 0 {
			o.maxItems = n
		}
	}
}

// NewResolver returns a Resolver over tables. The tables must not be
// modified afterwards.
func NewResolver(tables lookup.Tables, opts ...Option) (*Resolver, error) {
	o := resolverOptions{timeout: DefaultMatchTimeout, maxItems: 1024}
	for _, fn := range opts {
		fn(&o)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *regexp2.Regexp]{
		NumCounters: o.maxItems * 10,
		MaxCost:     o.maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("pattern: create cache: %w", err)
	}

	r := &Resolver{
		tables:  tables,
		lookups: make(map[string]*regexp2.Regexp, len(tables)),
		cache:   cache,
		timeout: o.timeout,
	}
	for name, t := range tables {
		re, err := regexp2.Compile(Alternation(t), regexp2.IgnoreCase)
		if err != nil {
			cache.Close()
			return nil, fmt.Errorf("pattern: lookup table %q: %w", name, err)
		}
		re.MatchTimeout = o.timeout
		r.lookups[name] = re
	}
	return r, nil
}

// Close releases the cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

// Compiled is a ready-to-run expression. Table is set for lookup patterns;
// their matches resolve to the table canonical.
type Compiled struct {
	Re    *regexp2.Regexp
	Table *lookup.Table
}

// Check verifies a Spec at configuration time: literal expressions must
// compile and lookup tables must exist. Indirect specs cannot be checked
// without a workspace and always pass.
func (r *Resolver) Check(s Spec) error {
	switch s.Kind {
	case Literal:
		_, err := r.compile(s.Source, s.IgnoreCase)
		return err
	case Lookup:
		if _, ok := r.tables[s.Source]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownTable, s.Source)
		}
	}
	return nil
}

// Resolve compiles s, reading indirect values from g.
func (r *Resolver) Resolve(s Spec, g Getter) (Compiled, error) {
	switch s.Kind {
	case Lookup:
		re, ok := r.lookups[s.Source]
		if !ok {
			return Compiled{}, fmt.Errorf("%w %q", ErrUnknownTable, s.Source)
		}
		return Compiled{Re: re, Table: r.tables[s.Source]}, nil
	case Indirect:
		v := strings.TrimSpace(g.Value(s.Source))
		if v == "" {
			return Compiled{}, ErrEmptyPattern
		}
		re, err := r.compile(Token(v), s.IgnoreCase)
		return Compiled{Re: re}, err
	default:
		re, err := r.compile(s.Source, s.IgnoreCase)
		return Compiled{Re: re}, err
	}
}

func (r *Resolver) compile(expr string, ignoreCase bool) (*regexp2.Regexp, error) {
	opts := regexp2.None
	key := "c\x00" + expr
	if ignoreCase {
		opts = regexp2.IgnoreCase
		key = "i\x00" + expr
	}
	if re, ok := r.cache.Get(key); ok {
		return re, nil
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", expr, err)
	}
	re.MatchTimeout = r.timeout
	r.cache.Set(key, re, 1)
	return re, nil
}

// Alternation builds the token-bounded alternation of every alias in t,
// longest alias first so overlapping aliases prefer the longer spelling.
func Alternation(t *lookup.Table) string {
	if t == nil {
		return neverMatch
	}
	aliases := t.AliasesLongestFirst()
	if len(aliases) == 0 {
		return neverMatch
	}
	parts := make([]string, len(aliases))
	for i, a := range aliases {
		parts[i] = regexp2.Escape(a)
	}
	return tokenStart + "(?:" + strings.Join(parts, "|") + ")" + tokenEnd
}

// Token returns an expression matching v literally as a standalone token.
func Token(v string) string {
	return tokenStart + "(?:" + regexp2.Escape(v) + ")" + tokenEnd
}

// Match is one regex match.
type Match struct {
	// Value is the matched text, or its canonical for lookup patterns.
	Value string
	Text  string
	// Index and Length are rune offsets into the searched string.
	Index  int
	Length int
	// Groups holds named groups that took part in the match.
	Groups map[string]string
}

// FindAll returns every non-overlapping match in s. A match error (such as a
// timeout) ends the scan; matches found so far are returned.
func (c Compiled) FindAll(s string) []Match {
	if c.Re == nil {
		return nil
	}
	var out []Match
	m, err := c.Re.FindStringMatch(s)
	for err == nil && m != nil {
		out = append(out, c.convert(m))
		m, err = c.Re.FindNextMatch(m)
	}
	return out
}

func (c Compiled) convert(m *regexp2.Match) Match {
	out := Match{Value: m.String(), Text: m.String(), Index: m.Index, Length: m.Length}
	if c.Table != nil {
		if canon, ok := c.Table.Resolve(out.Text); ok {
			out.Value = canon
		}
	}
	for _, g := range m.Groups() {
		if _, err := strconv.Atoi(g.Name); err == nil {
			continue
		}
		if len(g.Captures) == 0 {
			continue
		}
		if out.Groups == nil {
			out.Groups = make(map[string]string)
		}
		out.Groups[g.Name] = g.String()
	}
	return out
}

// RemoveSpans deletes every matched span from s and collapses the remaining
// whitespace to single spaces.
func RemoveSpans(s string, matches []Match) string {
	if len(matches) == 0 {
		return strings.Join(strings.Fields(s), " ")
	}
	runes := []rune(s)
	drop := make([]bool, len(runes))
	for _, m := range matches {
		for i := m.Index; i < m.Index+m.Length && i < len(runes); i++ {
			drop[i] = true
		}
	}
	var b strings.Builder
	for i, r := range runes {
		if !drop[i] {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
