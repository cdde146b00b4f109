package action

import (
	"strings"

	"github.com/TheStrul/Sacks-new-sub004/internal/pattern"
	"github.com/TheStrul/Sacks-new-sub004/internal/workspace"
)

type findMode int

const (
	findFirst findMode = iota
	findLast
	findAll
)

// find searches the input with a literal, lookup: or indirect pattern.
//
//	first/last  Output = the match (its canonical for lookup: patterns)
//	all         Output[i], Output.Length, and Output = the first match
//	remove      Output.Clean = input without any matched span
//
// Named groups land in Output.<name> (Output[i].<name> in all mode).
// Output.Valid is always written.
type findAction struct {
	base
	spec   pattern.Spec
	mode   findMode
	remove bool
}

func compileFind(b base, p *params, c *compiler) Action {
	a := &findAction{base: b}

	var ignoreCase bool
	modes := 0
	for _, tok := range strings.FieldsFunc(strings.ToLower(p.str("Options", "")), func(r rune) bool {
		return r == ',' || r == '|' || r == ' ' || r == ';'
	}) {
		switch tok {
		case "first":
			a.mode = findFirst
			modes++
		case "last":
			a.mode = findLast
			modes++
		case "all":
			a.mode = findAll
			modes++
		case "ignorecase":
			ignoreCase = true
		case "remove":
			a.remove = true
		default:
			c.errorf("parameters.Options", "unknown find option %q (want first, last, all, ignorecase, remove)", tok)
		}
	}
	if modes > 1 {
		c.errorf("parameters.Options", "first, last and all are mutually exclusive")
	}

	patternText, _ := p.get("Pattern")
	patternKey, _ := p.get("PatternKey")
	spec, err := pattern.ParseSpec(patternText, strings.TrimSpace(patternKey), ignoreCase)
	if err != nil {
		c.errorf("parameters.Pattern", "%v", err)
		return a
	}
	a.spec = spec

	switch spec.Kind {
	case pattern.Indirect:
		if !workspace.PlausibleKey(spec.Source) {
			c.errorf("parameters.PatternKey", "PatternKey %q is not a valid workspace key", spec.Source)
		}
	default:
		if c.env.Patterns == nil {
			break
		}
		if err := c.env.Patterns.Check(spec); err != nil {
			c.errorf("parameters.Pattern", "%v", err)
		} else if spec.Kind == pattern.Lookup && c.env.Tables[spec.Source].Len() == 0 {
			c.warnf("parameters.Pattern", "lookup table %q is empty; the pattern never matches", spec.Source)
		}
	}
	return a
}

func (a *findAction) Execute(b *workspace.Bag, env Env) Outcome {
	text := b.Value(a.in)

	var matches []pattern.Match
	if compiled, err := env.Patterns.Resolve(a.spec, b); err == nil {
		matches = compiled.FindAll(text)
	}

	if a.remove {
		b.SetClean(a.out, pattern.RemoveSpans(text, matches))
	}
	if len(matches) == 0 {
		b.SetValid(a.out, false)
		return failed
	}

	var chosen pattern.Match
	switch a.mode {
	case findAll:
		values := make([]string, len(matches))
		for i, m := range matches {
			values[i] = m.Value
			for name, v := range m.Groups {
				b.SetCapture(workspace.IndexKey(a.out, i), name, v)
			}
		}
		b.SetParts(a.out, values)
		chosen = matches[0]
	case findLast:
		chosen = matches[len(matches)-1]
		a.captures(b, chosen)
	default:
		chosen = matches[0]
		a.captures(b, chosen)
	}

	b.SetValid(a.out, true)
	return wrote(chosen.Value)
}

func (a *findAction) captures(b *workspace.Bag, m pattern.Match) {
	for name, v := range m.Groups {
		b.SetCapture(a.out, name, v)
	}
}
