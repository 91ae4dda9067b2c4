package substitution

import (
	"iter"
	"regexp"
	"sort"
	"strings"

	scerrors "github.com/conneroisu/scaffold/internal/errors"
	"github.com/conneroisu/scaffold/internal/types"
)

// ExtractVariables lazily yields the distinct variable names referenced by
// unescaped placeholders in content, in order of first appearance.
//
// The sequence is single-use: it keeps its scan position, so ranging over it
// a second time resumes where the first range stopped.
func ExtractVariables(content string) iter.Seq[string] {
	pos := 0
	seen := make(map[string]bool)

	return func(yield func(string) bool) {
		for pos < len(content) {
			ph, next, ok := nextPlaceholder(content, pos)
			pos = next
			if !ok {
				return
			}
			if ph.escaped || seen[ph.name] {
				continue
			}
			seen[ph.name] = true
			if !yield(ph.name) {
				return
			}
		}
	}
}

// VariableCheck is the outcome of ValidateRequiredVariables.
type VariableCheck struct {
	// Missing lists declared required variables with no usable value and no default
	Missing []string `json:"missing"`
	// Unresolved lists placeholders used in template paths that nothing resolves
	Unresolved []string `json:"unresolved"`
}

// Valid reports whether nothing is missing or unresolved.
func (c VariableCheck) Valid() bool {
	return len(c.Missing) == 0 && len(c.Unresolved) == 0
}

// ValidateRequiredVariables cross-checks a template's declared required
// variables against provided, then re-derives every placeholder used in the
// template's root folder, folder and file paths and rule targets and flags
// those that are neither provided, special, defaulted by declaration, nor
// carrying an inline default.
func ValidateRequiredVariables(tmpl *types.Template, provided map[string]any) VariableCheck {
	var check VariableCheck

	declared := make(map[string]types.TemplateVariable, len(tmpl.Variables))
	for _, v := range tmpl.Variables {
		declared[v.Name] = v
		if v.Required && !v.HasDefault() && !hasValue(provided, v.Name) {
			check.Missing = append(check.Missing, v.Name)
		}
	}

	seen := make(map[string]bool)
	for _, p := range templatePaths(tmpl) {
		for _, ph := range scan(p) {
			if ph.escaped || seen[ph.name] {
				continue
			}
			seen[ph.name] = true
			if ph.hasDefault || IsSpecialVariable(ph.name) || hasValue(provided, ph.name) {
				continue
			}
			if v, ok := declared[ph.name]; ok && v.HasDefault() {
				continue
			}
			check.Unresolved = append(check.Unresolved, ph.name)
		}
	}

	sort.Strings(check.Missing)
	sort.Strings(check.Unresolved)

	return check
}

// ResolveVariables builds the variable map stored for a project: provided
// values, declared defaults for anything absent, then declared transforms
// applied and declared patterns enforced on both alike. Required variables that end up empty are
// reported together in one error.
func ResolveVariables(tmpl *types.Template, provided map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(provided)+len(tmpl.Variables))
	for k, v := range provided {
		out[k] = v
	}

	var missing []string
	for _, v := range tmpl.Variables {
		if !hasValue(out, v.Name) {
			if !v.HasDefault() {
				if v.Required {
					missing = append(missing, v.Name)
				}
				continue
			}
			out[v.Name] = v.Default
		}

		raw, _ := Lookup(out, v.Name)
		value, isString := raw.(string)
		if !isString {
			continue
		}
		if v.Transform != "" {
			transformed, err := ApplyTransformation(value, v.Transform)
			if err != nil {
				return nil, err
			}
			value = transformed
			out[v.Name] = value
		}
		if v.Pattern != "" {
			re, err := regexp.Compile(v.Pattern)
			if err != nil {
				return nil, scerrors.InvalidVariable(v.Name, value, v.Pattern).
					WithContext("pattern_error", err.Error())
			}
			if !re.MatchString(value) {
				return nil, scerrors.InvalidVariable(v.Name, value, v.Pattern)
			}
		}
	}

	if len(missing) > 0 {
		return nil, scerrors.MissingRequiredVariables(tmpl.Name, missing)
	}

	return out, nil
}

// templatePaths collects every substitutable path of a template.
func templatePaths(tmpl *types.Template) []string {
	paths := make([]string, 0, 1+len(tmpl.Folders)+len(tmpl.Files)+len(tmpl.Rules.Rules))
	paths = append(paths, tmpl.RootFolder)
	for _, f := range tmpl.Folders {
		paths = append(paths, f.Path)
	}
	for _, f := range tmpl.Files {
		paths = append(paths, f.Path)
	}
	for _, r := range tmpl.Rules.Rules {
		paths = append(paths, r.Target)
	}
	return paths
}

// hasValue reports whether name resolves to a non-blank value.
func hasValue(vars map[string]any, name string) bool {
	v, ok := Lookup(vars, name)
	if !ok {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}
