// Package substitution implements the placeholder expansion engine used for
// template paths and file content.
//
// A placeholder is written {{name}}, {{name|default}}, {{name|default|transform}}
// or {{name||transform}}; \{{name}} is an escaped placeholder that is left
// alone and loses its backslash once substitution finishes.
//
// Values may themselves contain placeholders. Expansion is recursive and
// guarded twice: every variable whose value is being expanded is tracked as
// in flight, and reaching an in-flight variable again is a circular reference;
// independently, the whole string is re-scanned at most MaxDepth times.
package substitution

import (
	"fmt"
	"slices"
	"strings"
	"time"

	scerrors "github.com/conneroisu/scaffold/internal/errors"
)

// DefaultMaxDepth bounds the number of expansion passes.
const DefaultMaxDepth = 10

// Options tune a Substitute call. The zero value is usable.
type Options struct {
	// ThrowOnMissing turns unresolvable placeholders into MissingVariable
	// errors instead of leaving them verbatim
	ThrowOnMissing bool
	// MaxDepth bounds expansion passes and nesting; <= 0 means DefaultMaxDepth
	MaxDepth int
	// AllowCircular returns the partially expanded string instead of failing
	// when MaxDepth is exhausted
	AllowCircular bool
	// PreserveEscapes keeps the backslash of escaped placeholders
	PreserveEscapes bool
	// Now is the clock special variables are computed from; nil means time.Now
	Now func() time.Time
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth}
}

func (o Options) normalized() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Substitute expands every placeholder in content against vars.
//
// Lookup order per placeholder is: the variable (dotted names walk nested
// maps), then a special variable, then the inline default. A placeholder
// that still has no value fails with a MissingVariable error when
// ThrowOnMissing is set and is otherwise left untouched. Unknown transforms
// always fail.
func Substitute(content string, vars map[string]any, opts Options) (string, error) {
	opts = opts.normalized()
	r := &resolver{
		vars:     vars,
		opts:     opts,
		specials: newSpecials(opts.Now()),
	}

	current := content
	for depth := 0; ; depth++ {
		next, err := r.expand(current, nil)
		if err != nil {
			return "", err
		}
		if next == current {
			return r.finish(current), nil
		}
		if depth >= opts.MaxDepth {
			if opts.AllowCircular {
				return r.finish(current), nil
			}
			return "", scerrors.DepthExceeded(opts.MaxDepth, unresolvedNames(current))
		}
		current = next
	}
}

type resolver struct {
	vars     map[string]any
	opts     Options
	specials *specials
}

// expand replaces every unescaped placeholder of s once. inFlight holds the
// variables whose values are currently being expanded, outermost first.
func (r *resolver) expand(s string, inFlight []string) (string, error) {
	phs := scan(s)
	if len(phs) == 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, ph := range phs {
		if ph.escaped {
			continue
		}
		b.WriteString(s[last:ph.start])
		last = ph.end

		// A value that references its own name is a fixed point, not a cycle.
		if len(inFlight) > 0 && ph.name == inFlight[len(inFlight)-1] {
			b.WriteString(ph.raw)
			continue
		}
		if slices.Contains(inFlight, ph.name) {
			return "", scerrors.CircularReference(ph.name, inFlight)
		}

		value, err := r.resolvePlaceholder(ph, inFlight)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
	}
	b.WriteString(s[last:])

	return b.String(), nil
}

// resolvePlaceholder returns the replacement text for ph.
func (r *resolver) resolvePlaceholder(ph placeholder, inFlight []string) (string, error) {
	if ph.transform != "" && !IsTransform(ph.transform) {
		return "", scerrors.UnknownTransform(ph.transform, suggestTransforms(ph.transform)...)
	}

	value, found, err := r.resolveName(ph.name, inFlight)
	if err != nil {
		return "", err
	}
	if !found && ph.hasDefault {
		value, found = ph.def, true
	}
	if !found {
		if r.opts.ThrowOnMissing {
			return "", scerrors.MissingVariable(ph.name)
		}
		return ph.raw, nil
	}

	if ph.transform != "" {
		return ApplyTransformation(value, ph.transform)
	}
	return value, nil
}

// resolveName looks name up as a variable, then as a special variable.
// Variable values containing placeholders are expanded with name in flight.
func (r *resolver) resolveName(name string, inFlight []string) (string, bool, error) {
	raw, ok := Lookup(r.vars, name)
	if !ok {
		v, ok := r.specials.get(name)
		return v, ok, nil
	}

	value := stringify(raw)
	if !HasPlaceholders(value) {
		return value, true, nil
	}
	if len(inFlight) >= r.opts.MaxDepth {
		chain := append(slices.Clone(inFlight), name)
		if revisited, at, ok := r.findCycle(value, chain, make(map[string]bool)); ok {
			return "", false, scerrors.CircularReference(revisited, at)
		}
		if r.opts.AllowCircular {
			return value, true, nil
		}
		return "", false, scerrors.DepthExceeded(r.opts.MaxDepth, chain)
	}

	expanded, err := r.expand(value, append(slices.Clone(inFlight), name))
	if err != nil {
		return "", false, err
	}
	return expanded, true, nil
}

// findCycle walks the values reachable from value, with chain in flight,
// and reports the first variable revisited in the same order expand would
// reach it. acyclic memoizes names whose values were fully walked.
func (r *resolver) findCycle(value string, chain []string, acyclic map[string]bool) (string, []string, bool) {
	for _, ph := range scan(value) {
		if ph.escaped || ph.name == chain[len(chain)-1] {
			continue
		}
		if slices.Contains(chain, ph.name) {
			return ph.name, chain, true
		}
		if acyclic[ph.name] {
			continue
		}
		raw, ok := Lookup(r.vars, ph.name)
		if !ok {
			continue
		}
		next := stringify(raw)
		if HasPlaceholders(next) {
			if name, at, ok := r.findCycle(next, append(slices.Clone(chain), ph.name), acyclic); ok {
				return name, at, true
			}
		}
		acyclic[ph.name] = true
	}
	return "", nil, false
}

func (r *resolver) finish(s string) string {
	if r.opts.PreserveEscapes {
		return s
	}
	return unescape(s)
}

// Lookup resolves a possibly dotted variable name. An exact key match wins
// over walking nested maps. Nil values count as absent.
func Lookup(vars map[string]any, name string) (any, bool) {
	if vars == nil {
		return nil, false
	}
	if v, ok := vars[name]; ok {
		return v, v != nil
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}

	var current any = vars
	for _, part := range strings.Split(name, ".") {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}

	return current, current != nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
