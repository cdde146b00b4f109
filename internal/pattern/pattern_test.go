package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
)

type values map[string]string

func (v values) Value(k string) string { return v[k] }

func brandTables() lookup.Tables {
	t := lookup.NewTable()
	t.Add("chanel", "Chanel")
	t.Add("CHANEL PARIS", "Chanel")
	t.Add("dior", "Dior")
	t.Add("Yves Saint Laurent", "YSL")
	return lookup.Tables{"Brand": t, "Empty": lookup.NewTable()}
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(brandTables())
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestParseSpec(t *testing.T) {
	s, err := ParseSpec(`\d+`, "", false)
	require.NoError(t, err)
	assert.Equal(t, Spec{Kind: Literal, Source: `\d+`}, s)

	s, err = ParseSpec("lookup:Brand", "", false)
	require.NoError(t, err)
	assert.Equal(t, Spec{Kind: Lookup, Source: "Brand", IgnoreCase: true}, s)

	s, err = ParseSpec("", "Product.Brand", true)
	require.NoError(t, err)
	assert.Equal(t, Spec{Kind: Indirect, Source: "Product.Brand", IgnoreCase: true}, s)

	_, err = ParseSpec("x", "y", false)
	assert.Error(t, err)
	_, err = ParseSpec("", "", false)
	assert.Error(t, err)
	_, err = ParseSpec("lookup:", "", false)
	assert.Error(t, err)
}

/*
TestResolve_LookupLongestFirstCanonical verifies that a lookup pattern prefers
the longest alias at a position, ignores case, respects token boundaries and
reports the table canonical as the match value.
*/
func TestResolve_LookupLongestFirstCanonical(t *testing.T) {
	r := newResolver(t)
	spec, _ := ParseSpec("lookup:Brand", "", false)

	c, err := r.Resolve(spec, values{})
	require.NoError(t, err)

	ms := c.FindAll("Chanel Paris No.5 and DIOR")
	require.Len(t, ms, 2)
	assert.Equal(t, "Chanel", ms[0].Value)
	assert.Equal(t, "Chanel Paris", ms[0].Text)
	assert.Equal(t, 0, ms[0].Index)
	assert.Equal(t, 12, ms[0].Length)
	assert.Equal(t, "Dior", ms[1].Value)

	assert.Empty(t, c.FindAll("CHANELLE"), "aliases must match whole tokens")
	assert.Len(t, c.FindAll("x-dior-y"), 1)
}

// TestResolve_LookupCompiledOnce verifies that every row reuses the
// alternation built by NewResolver and that nothing is cached for it.
func TestResolve_LookupCompiledOnce(t *testing.T) {
	r := newResolver(t)
	spec, _ := ParseSpec("lookup:Brand", "", false)

	first, err := r.Resolve(spec, values{})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := r.Resolve(spec, values{})
		require.NoError(t, err)
		assert.Same(t, first.Re, again.Re)
	}
	r.cache.Wait()
	_, cached := r.cache.Get("i\x00" + Alternation(brandTables()["Brand"]))
	assert.False(t, cached)

	_, err = r.Resolve(Spec{Kind: Lookup, Source: "Missing"}, values{})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestResolve_EmptyTableNeverMatches(t *testing.T) {
	r := newResolver(t)
	c, err := r.Resolve(Spec{Kind: Lookup, Source: "Empty"}, values{})
	require.NoError(t, err)
	assert.Empty(t, c.FindAll("anything"))
}

func TestResolve_Indirect(t *testing.T) {
	r := newResolver(t)
	spec, _ := ParseSpec("", "Product.Brand", true)

	c, err := r.Resolve(spec, values{"Product.Brand": "Y.S.L"})
	require.NoError(t, err)
	ms := c.FindAll("y.s.l Libre EDP")
	require.Len(t, ms, 1)
	assert.Equal(t, "y.s.l", ms[0].Value)
	assert.Empty(t, c.FindAll("YxSxL"), "indirect values are matched literally")

	_, err = r.Resolve(spec, values{})
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func TestResolve_LiteralNamedGroupsAndLookahead(t *testing.T) {
	r := newResolver(t)
	spec, _ := ParseSpec(`(?<num>\d+)\s*(?<unit>ml|oz)`, "", true)

	c, err := r.Resolve(spec, values{})
	require.NoError(t, err)
	ms := c.FindAll("EDT 100 ML spray")
	require.Len(t, ms, 1)
	assert.Equal(t, map[string]string{"num": "100", "unit": "ML"}, ms[0].Groups)

	la, _ := ParseSpec(`\d+(?=ML)`, "", false)
	c, err = r.Resolve(la, values{})
	require.NoError(t, err)
	ms = c.FindAll("NO.5 EDT 100ML")
	require.Len(t, ms, 1)
	assert.Equal(t, "100", ms[0].Value)
}

func TestCheck(t *testing.T) {
	r := newResolver(t)
	assert.NoError(t, r.Check(Spec{Kind: Literal, Source: `\d+`}))
	assert.Error(t, r.Check(Spec{Kind: Literal, Source: `(\d+`}))
	assert.NoError(t, r.Check(Spec{Kind: Lookup, Source: "Brand"}))
	assert.ErrorIs(t, r.Check(Spec{Kind: Lookup, Source: "Nope"}), ErrUnknownTable)
	assert.NoError(t, r.Check(Spec{Kind: Indirect, Source: "X"}))
}

func TestRemoveSpans(t *testing.T) {
	r := newResolver(t)
	spec, _ := ParseSpec("lookup:Brand", "", false)
	c, _ := r.Resolve(spec, values{})

	in := "  CHANEL   NO.5  dior EDT  "
	assert.Equal(t, "NO.5 EDT", RemoveSpans(in, c.FindAll(in)))
	assert.Equal(t, "a b", RemoveSpans(" a   b ", nil))
}
