package action

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/TheStrul/Sacks-new-sub004/internal/workspace"
)

// convert multiplies a numeric input by a unit factor and snaps the result to
// a standard size. With UnitKey it only runs when that key holds FromUnit;
// SetUnit then rewrites the key to ToUnit, including its harvested value
// when the key was assigned.
type convertAction struct {
	base
	from, to unit
	factor   decimal.Decimal
	snaps    []decimal.Decimal
	unitKey  string
	setUnit  bool
}

func compileConvert(b base, p *params, c *compiler) Action {
	a := &convertAction{base: b}

	name, hasPreset := p.get("Preset")
	fromName, hasFrom := p.get("FromUnit")
	toName, hasTo := p.get("ToUnit")
	a.unitKey = strings.TrimSpace(p.str("UnitKey", ""))
	a.setUnit = p.boolean("SetUnit", false)

	switch {
	case hasPreset && (hasFrom || hasTo):
		c.errorf("parameters.Preset", "Preset cannot be combined with FromUnit/ToUnit")
		return a
	case hasPreset:
		pr, ok := presets[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			c.errorf("parameters.Preset", "unknown preset %q (known: %s)", name, strings.Join(PresetNames(), ", "))
			return a
		}
		fromName, toName = pr.from, pr.to
	case hasFrom && hasTo:
	default:
		c.errorf("parameters", "convert requires Preset or both FromUnit and ToUnit")
		return a
	}

	from, ok := lookupUnit(fromName)
	if !ok {
		c.errorf("parameters.FromUnit", "unknown unit %q", fromName)
	}
	to, ok2 := lookupUnit(toName)
	if !ok2 {
		c.errorf("parameters.ToUnit", "unknown unit %q", toName)
	}
	if !ok || !ok2 {
		return a
	}
	if from.dim != to.dim {
		c.errorf("parameters", "cannot convert %s to %s", from.name, to.name)
		return a
	}
	a.from, a.to = from, to
	a.factor = unitFactor(from, to)
	if pr, ok := presetFor(from.name, to.name); ok {
		a.snaps = pr.snaps
	}

	if a.unitKey != "" && !workspace.PlausibleKey(a.unitKey) {
		c.errorf("parameters.UnitKey", "UnitKey %q is not a valid workspace key", a.unitKey)
	}
	if a.setUnit && a.unitKey == "" {
		c.errorf("parameters.SetUnit", "SetUnit requires UnitKey")
	}
	return a
}

func (a *convertAction) Execute(b *workspace.Bag, _ Env) Outcome {
	if a.unitKey != "" {
		u, ok := lookupUnit(strings.TrimSpace(b.Value(a.unitKey)))
		if !ok || u.name != a.from.name {
			return Outcome{OK: true, Skipped: true}
		}
	}

	v, err := parseNumber(b.Value(a.in))
	if err != nil {
		b.SetValid(a.out, false)
		return failed
	}
	res := snap(v.Mul(a.factor), a.snaps)

	b.SetValid(a.out, true)
	if a.setUnit {
		b.Update(a.unitKey, a.to.name)
	}
	return wrote(res.Round(2).String())
}

// parseNumber accepts "3.4", "3,4" and surrounding whitespace.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
