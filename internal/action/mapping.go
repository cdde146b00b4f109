package action

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/TheStrul/Sacks-new-sub004/internal/workspace"
)

// map resolves the input through a lookup table. CaseMode reshapes the
// canonical. With AddIfNotFound an unknown input becomes its own canonical.
type mapAction struct {
	base
	table         string
	mode          caseMode
	addIfNotFound bool
}

func compileMap(b base, p *params, c *compiler) Action {
	a := &mapAction{base: b, mode: caseOriginal}

	a.table = strings.TrimSpace(p.str("Table", ""))
	switch {
	case a.table == "":
		c.errorf("parameters.Table", "map requires Table")
	case c.env.Tables != nil:
		if _, ok := c.env.Tables[a.table]; !ok {
			c.errorf("parameters.Table", "unknown lookup table %q", a.table)
		}
	}
	if v, ok := p.get("CaseMode"); ok {
		m, ok := parseCaseMode(v)
		if !ok {
			c.errorf("parameters.CaseMode", "CaseMode must be original, upper, lower or title, got %q", v)
		} else {
			a.mode = m
		}
	}
	a.addIfNotFound = p.boolean("AddIfNotFound", false)
	return a
}

func (a *mapAction) Execute(b *workspace.Bag, env Env) Outcome {
	in := strings.TrimSpace(b.Value(a.in))
	if in == "" {
		b.SetValid(a.out, false)
		return failed
	}
	canon, ok := env.Tables.Resolve(a.table, in)
	if !ok && a.addIfNotFound {
		canon, ok = in, true
		if env.Learner != nil {
			canon = env.Learner.Learn(a.table, in)
		}
	}
	if !ok {
		b.SetValid(a.out, false)
		return failed
	}
	b.SetValid(a.out, true)
	return wrote(a.mode.apply(canon, language.Und))
}
