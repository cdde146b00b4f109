package action

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/TheStrul/Sacks-new-sub004/internal/workspace"
)

// assign copies the input value; an absent input copies as "".
type assignAction struct{ base }

func (a *assignAction) Execute(b *workspace.Bag, _ Env) Outcome {
	return wrote(b.Value(a.in))
}

// clear sets the output to "".
type clearAction struct{ base }

func (a *clearAction) Execute(*workspace.Bag, Env) Outcome {
	return wrote("")
}

// concat joins the values of Keys with Separator. Absent keys join as "".
type concatAction struct {
	base
	keys []string
	sep  string
}

func compileConcat(b base, p *params, c *compiler) Action {
	keys := list(p.str("Keys", ""))
	if len(keys) == 0 {
		c.errorf("parameters.Keys", "concat requires Keys (comma-separated workspace keys)")
	}
	for _, k := range keys {
		if !workspace.PlausibleKey(k) {
			c.errorf("parameters.Keys", "%q is not a valid workspace key", k)
		}
	}
	return &concatAction{base: b, keys: keys, sep: p.str("Separator", "")}
}

func (a *concatAction) Execute(b *workspace.Bag, _ Env) Outcome {
	vals := make([]string, len(a.keys))
	for i, k := range a.keys {
		vals[i] = b.Value(k)
	}
	return wrote(strings.Join(vals, a.sep))
}

type caseMode string

const (
	caseOriginal caseMode = "original"
	caseTitle    caseMode = "title"
	caseUpper    caseMode = "upper"
	caseLower    caseMode = "lower"
)

func parseCaseMode(s string) (caseMode, bool) {
	switch m := caseMode(strings.ToLower(strings.TrimSpace(s))); m {
	case caseOriginal, caseTitle, caseUpper, caseLower:
		return m, true
	}
	return "", false
}

// apply returns v in mode m. Casers are stateful, so one is built per call.
func (m caseMode) apply(v string, tag language.Tag) string {
	switch m {
	case caseTitle:
		return cases.Title(tag).String(v)
	case caseUpper:
		return cases.Upper(tag).String(v)
	case caseLower:
		return cases.Lower(tag).String(v)
	}
	return v
}

// caseformat rewrites the input in title, upper or lower case using the
// rules of Culture (a BCP 47 tag; root rules when empty).
type caseFormatAction struct {
	base
	mode caseMode
	tag  language.Tag
}

func compileCaseFormat(b base, p *params, c *compiler) Action {
	a := &caseFormatAction{base: b, mode: caseTitle, tag: language.Und}
	if v, ok := p.get("Mode"); ok {
		m, ok := parseCaseMode(v)
		if !ok || m == caseOriginal {
			c.errorf("parameters.Mode", "Mode must be title, upper or lower, got %q", v)
		} else {
			a.mode = m
		}
	}
	if v, ok := p.get("Culture"); ok && strings.TrimSpace(v) != "" {
		tag, err := language.Parse(strings.TrimSpace(v))
		if err != nil {
			c.errorf("parameters.Culture", "Culture %q is not a valid language tag: %v", v, err)
		} else {
			a.tag = tag
		}
	}
	return a
}

func (a *caseFormatAction) Execute(b *workspace.Bag, _ Env) Outcome {
	return wrote(a.mode.apply(b.Value(a.in), a.tag))
}

// split cuts the input on Delimiter into trimmed parts written to
// <Output>[i] with <Output>.Length. With ExpectedParts and Strict, a part
// count mismatch fails and writes no parts.
type splitAction struct {
	base
	delim    string
	expected int
	strict   bool
}

func compileSplit(b base, p *params, c *compiler) Action {
	a := &splitAction{base: b, delim: p.str("Delimiter", ":")}
	if a.delim == "" {
		c.errorf("parameters.Delimiter", "Delimiter must not be empty")
	}
	if n, ok := p.integer("ExpectedParts"); ok {
		if n <= 0 {
			c.errorf("parameters.ExpectedParts", "ExpectedParts must be positive, got %d", n)
		}
		a.expected = n
	}
	a.strict = p.boolean("Strict", false)
	if a.strict && a.expected == 0 {
		c.warnf("parameters.Strict", "Strict has no effect without ExpectedParts")
	}
	return a
}

func (a *splitAction) Execute(b *workspace.Bag, _ Env) Outcome {
	parts := strings.Split(b.Value(a.in), a.delim)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if a.strict && a.expected > 0 && len(parts) != a.expected {
		b.SetValid(a.out, false)
		return failed
	}
	b.SetParts(a.out, parts)
	b.SetValid(a.out, true)
	return Outcome{OK: true}
}

// switch maps exact input literals (When:<literal>) to values, falling back
// to Default.
type switchAction struct {
	base
	cases      map[string]string
	def        string
	hasDefault bool
	ignoreCase bool
}

func compileSwitch(b base, p *params, c *compiler) Action {
	a := &switchAction{base: b, cases: make(map[string]string)}
	a.ignoreCase = p.boolean("IgnoreCase", false)
	a.def, a.hasDefault = p.get("Default")

	whens := p.prefixed("When:")
	for lit, v := range whens {
		k := lit
		if a.ignoreCase {
			k = foldLiteral(k)
		}
		if prev, dup := a.cases[k]; dup && prev != v {
			c.errorf("parameters", "When:%s is ambiguous with IgnoreCase: maps to %q and %q", lit, prev, v)
		}
		a.cases[k] = v
	}
	if len(whens) == 0 && !a.hasDefault {
		c.errorf("parameters", "switch requires at least one When:<value> or a Default")
	}
	return a
}

// foldLiteral case-folds s without trimming; switch literals match exactly.
func foldLiteral(s string) string { return cases.Fold().String(s) }

func (a *switchAction) Execute(b *workspace.Bag, _ Env) Outcome {
	k := b.Value(a.in)
	if a.ignoreCase {
		k = foldLiteral(k)
	}
	if v, ok := a.cases[k]; ok {
		b.SetValid(a.out, true)
		return wrote(v)
	}
	if a.hasDefault {
		b.SetValid(a.out, true)
		return wrote(a.def)
	}
	b.SetValid(a.out, false)
	return failed
}
