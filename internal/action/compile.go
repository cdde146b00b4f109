package action

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/workspace"
)

// Compile turns def into a typed Action. path prefixes every reported issue
// (e.g. "sources[0].columns[1].actions[2]"). All problems are collected; the
// returned Action is nil whenever an error-severity issue is present.
func Compile(def config.ActionDef, path string, env Env) (Action, []config.Issue) {
	c := &compiler{path: path, env: env}

	op, ok := ParseOp(def.Op)
	if !ok {
		c.errorf("op", "unknown op %q", def.Op)
		return nil, c.issues
	}

	in := def.InputKey()
	out := strings.TrimSpace(def.Output)
	if !workspace.PlausibleKey(in) {
		c.errorf("input", "input %q is not a valid workspace key", in)
	}
	switch {
	case out == "":
		c.errorf("output", "output must not be empty")
	case !workspace.PlausibleKey(out):
		c.errorf("output", "output %q is not a valid workspace key", out)
	case workspace.IsDerived(out):
		c.errorf("output", "output %q is a derived key (.Valid, .Clean, .Length, [n]) and cannot be written directly", out)
	}

	p := newParams(def.Parameters, c)
	b := base{op: op, in: in, out: out}

	var a Action
	switch op {
	case OpAssign:
		a = &assignAction{base: b}
	case OpClear:
		a = &clearAction{base: b}
	case OpFind:
		a = compileFind(b, p, c)
	case OpMap:
		a = compileMap(b, p, c)
	case OpSwitch:
		a = compileSwitch(b, p, c)
	case OpCaseFormat:
		a = compileCaseFormat(b, p, c)
	case OpConcat:
		a = compileConcat(b, p, c)
	case OpConvert:
		a = compileConvert(b, p, c)
	case OpSplit:
		a = compileSplit(b, p, c)
	}
	p.reportUnknown(op)

	if c.failed {
		return nil, c.issues
	}
	return a, c.issues
}

type compiler struct {
	path   string
	env    Env
	issues []config.Issue
	failed bool
}

func (c *compiler) at(sub string) string {
	if c.path == "" {
		return sub
	}
	return c.path + "." + sub
}

func (c *compiler) errorf(sub, format string, args ...any) {
	c.failed = true
	c.issues = append(c.issues, config.Issue{
		Severity: config.SeverityError,
		Path:     c.at(sub),
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *compiler) warnf(sub, format string, args ...any) {
	c.issues = append(c.issues, config.Issue{
		Severity: config.SeverityWarning,
		Path:     c.at(sub),
		Message:  fmt.Sprintf(format, args...),
	})
}

// params gives case-insensitive access to op parameters and remembers which
// names an op consumed, so anything left over can be reported as unknown.
type params struct {
	raw  config.Params
	used map[string]bool
	c    *compiler
}

func newParams(raw config.Params, c *compiler) *params {
	return &params{raw: raw, used: make(map[string]bool), c: c}
}

func (p *params) lookup(name string) (key, value string, ok bool) {
	if v, ok := p.raw[name]; ok {
		return name, v, true
	}
	for k, v := range p.raw {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", "", false
}

func (p *params) get(name string) (string, bool) {
	k, v, ok := p.lookup(name)
	if ok {
		p.used[k] = true
	}
	return v, ok
}

func (p *params) str(name, def string) string {
	if v, ok := p.get(name); ok {
		return v
	}
	return def
}

func (p *params) boolean(name string, def bool) bool {
	v, ok := p.get(name)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	b, err := cast.ToBoolE(strings.ToLower(strings.TrimSpace(v)))
	if err != nil {
		p.c.errorf("parameters."+name, "%s must be true or false, got %q", name, v)
		return def
	}
	return b
}

func (p *params) integer(name string) (int, bool) {
	v, ok := p.get(name)
	if !ok || strings.TrimSpace(v) == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.c.errorf("parameters."+name, "%s must be an integer, got %q", name, v)
		return 0, false
	}
	return n, true
}

// prefixed returns every parameter whose name starts with prefix
// (case-insensitive), keyed by the remainder of the name.
func (p *params) prefixed(prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range p.raw {
		if len(k) >= len(prefix) && strings.EqualFold(k[:len(prefix)], prefix) {
			p.used[k] = true
			out[k[len(prefix):]] = v
		}
	}
	return out
}

func (p *params) reportUnknown(op Op) {
	var names []string
	for k := range p.raw {
		if !p.used[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	for _, k := range names {
		p.c.errorf("parameters."+k, "unknown parameter %q for op %s", k, op)
	}
}

// list splits a comma-separated parameter into trimmed, non-empty items.
func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
