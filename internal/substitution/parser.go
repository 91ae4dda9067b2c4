package substitution

import "strings"

const (
	openDelim  = "{{"
	closeDelim = "}}"
	escapeChar = '\\'
	fieldSep   = "|"
)

// placeholder is one {{...}} occurrence in a string.
//
// Grammar of the body between the delimiters:
//
//	name                    lookup only
//	name|default            default used when name resolves to nothing
//	name|default|transform  transform applied to the resolved value
//	name||transform         transform with no default
//
// The body may not contain '{' or '}'. An empty default segment means no
// default. Name and transform are trimmed; the default is kept verbatim.
type placeholder struct {
	// start and end delimit the token "{{...}}" in the source; a leading
	// escape backslash sits at start-1 and is not part of the token
	start, end int
	escaped    bool
	raw        string

	name       string
	def        string
	hasDefault bool
	transform  string
}

// nextPlaceholder returns the first well-formed placeholder at or after
// offset from, and the offset scanning should continue at.
func nextPlaceholder(s string, from int) (placeholder, int, bool) {
	for from < len(s) {
		idx := strings.Index(s[from:], openDelim)
		if idx < 0 {
			return placeholder{}, len(s), false
		}
		open := from + idx
		bodyStart := open + len(openDelim)

		i := bodyStart
		for i < len(s) && s[i] != '{' && s[i] != '}' {
			i++
		}

		switch {
		case i >= len(s):
			return placeholder{}, len(s), false
		case s[i] == '{':
			// "{{{" or "{{a{": retry from the brace that broke the body
			from = open + 1
			continue
		case !strings.HasPrefix(s[i:], closeDelim) || i == bodyStart:
			from = i + 1
			continue
		}

		ph, ok := parseBody(s[bodyStart:i])
		end := i + len(closeDelim)
		if !ok {
			from = end
			continue
		}
		ph.start = open
		ph.end = end
		ph.raw = s[open:end]
		ph.escaped = open > 0 && s[open-1] == escapeChar
		return ph, end, true
	}

	return placeholder{}, len(s), false
}

// parseBody splits a placeholder body into its fields.
func parseBody(body string) (placeholder, bool) {
	fields := strings.SplitN(body, fieldSep, 3)

	ph := placeholder{name: strings.TrimSpace(fields[0])}
	if ph.name == "" {
		return placeholder{}, false
	}
	if len(fields) > 1 && fields[1] != "" {
		ph.def = fields[1]
		ph.hasDefault = true
	}
	if len(fields) > 2 {
		ph.transform = strings.TrimSpace(fields[2])
	}

	return ph, true
}

// scan returns every well-formed placeholder in s, escaped ones included.
func scan(s string) []placeholder {
	var out []placeholder
	pos := 0
	for {
		ph, next, ok := nextPlaceholder(s, pos)
		if !ok {
			return out
		}
		out = append(out, ph)
		pos = next
	}
}

// HasPlaceholders reports whether s contains at least one unescaped placeholder.
func HasPlaceholders(s string) bool {
	pos := 0
	for {
		ph, next, ok := nextPlaceholder(s, pos)
		if !ok {
			return false
		}
		if !ph.escaped {
			return true
		}
		pos = next
	}
}

// unresolvedNames lists the distinct names of unescaped placeholders in s.
func unresolvedNames(s string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ph := range scan(s) {
		if ph.escaped || seen[ph.name] {
			continue
		}
		seen[ph.name] = true
		names = append(names, ph.name)
	}
	return names
}

// unescape drops the backslash in front of every escaped placeholder.
func unescape(s string) string {
	phs := scan(s)
	if len(phs) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, ph := range phs {
		if !ph.escaped {
			continue
		}
		b.WriteString(s[last : ph.start-1])
		b.WriteString(ph.raw)
		last = ph.end
	}
	b.WriteString(s[last:])

	return b.String()
}
