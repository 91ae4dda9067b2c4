package substitution

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	scerrors "github.com/conneroisu/scaffold/internal/errors"
)

// TransformFunc converts a resolved value.
type TransformFunc func(string) string

// transforms is the fixed registry of named transforms.
var transforms = map[string]TransformFunc{
	"upper":      upper,
	"lower":      lower,
	"camelCase":  camelCase,
	"pascalCase": pascalCase,
	"kebabCase":  func(s string) string { return joinLower(words(s), "-") },
	"snakeCase":  func(s string) string { return joinLower(words(s), "_") },
	"capitalize": capitalize,
	"trim":       strings.TrimSpace,
}

// Transforms returns the registered transform names in sorted order.
func Transforms() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsTransform reports whether name is a registered transform.
func IsTransform(name string) bool {
	_, ok := transforms[name]
	return ok
}

// ApplyTransformation applies the named transform to value.
func ApplyTransformation(value, name string) (string, error) {
	fn, ok := transforms[name]
	if !ok {
		return "", scerrors.UnknownTransform(name, suggestTransforms(name)...)
	}
	return fn(value), nil
}

// suggestTransforms returns up to three registered names fuzzily matching name.
func suggestTransforms(name string) []string {
	matches := fuzzy.Find(name, Transforms())
	out := make([]string, 0, 3)
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].Str)
	}
	return out
}

// Casers are not safe for concurrent use, so one is built per call.

func upper(s string) string { return cases.Upper(language.Und).String(s) }

func lower(s string) string { return cases.Lower(language.Und).String(s) }

func title(s string) string { return cases.Title(language.Und).String(s) }

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func camelCase(s string) string {
	ws := words(s)
	if len(ws) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(lower(ws[0]))
	for _, w := range ws[1:] {
		b.WriteString(title(w))
	}
	return b.String()
}

func pascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(title(w))
	}
	return b.String()
}

func joinLower(ws []string, sep string) string {
	for i, w := range ws {
		ws[i] = lower(w)
	}
	return strings.Join(ws, sep)
}

// words splits s on non-alphanumeric runes and on case boundaries, so
// "myHTTPServer_v2" yields [my HTTP Server v2].
func words(s string) []string {
	var out []string
	runes := []rune(s)
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			out = append(out, string(runes[start:end]))
		}
		start = -1
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		switch {
		case (unicode.IsLower(prev) || unicode.IsDigit(prev)) && unicode.IsUpper(r):
			flush(i)
			start = i
		case unicode.IsUpper(prev) && unicode.IsUpper(r) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			flush(i)
			start = i
		}
	}
	flush(len(runes))

	return out
}
