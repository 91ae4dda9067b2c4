package substitution

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scerrors "github.com/conneroisu/scaffold/internal/errors"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 7, 9, 5, 3, 0, time.UTC)
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		vars     map[string]any
		opts     Options
		expected string
	}{
		{
			name:     "simple variable",
			content:  "Hello {{name}}!",
			vars:     map[string]any{"name": "World"},
			expected: "Hello World!",
		},
		{
			name:     "default used when absent",
			content:  "{{name|Guest}}",
			vars:     map[string]any{},
			expected: "Guest",
		},
		{
			name:     "default ignored when present",
			content:  "{{name|Guest}}",
			vars:     map[string]any{"name": "Ada"},
			expected: "Ada",
		},
		{
			name:     "transform with empty default",
			content:  "{{name||upper}}",
			vars:     map[string]any{"name": "hi"},
			expected: "HI",
		},
		{
			name:     "default with transform",
			content:  "{{name|guest user|pascalCase}}",
			vars:     nil,
			expected: "GuestUser",
		},
		{
			name:     "escaped placeholder",
			content:  "Literal: \\{{name}}",
			vars:     map[string]any{"name": "World"},
			expected: "Literal: {{name}}",
		},
		{
			name:     "escaped placeholder preserved",
			content:  "Literal: \\{{name}}",
			vars:     map[string]any{"name": "World"},
			opts:     Options{PreserveEscapes: true},
			expected: "Literal: \\{{name}}",
		},
		{
			name:     "nested lookup",
			content:  "by {{project.author}}",
			vars:     map[string]any{"project": map[string]any{"author": "Grace"}},
			expected: "by Grace",
		},
		{
			name:     "nested string map",
			content:  "{{meta.license}}",
			vars:     map[string]any{"meta": map[string]string{"license": "MIT"}},
			expected: "MIT",
		},
		{
			name:     "exact dotted key wins",
			content:  "{{a.b}}",
			vars:     map[string]any{"a.b": "flat", "a": map[string]any{"b": "nested"}},
			expected: "flat",
		},
		{
			name:     "recursive values",
			content:  "{{greeting}}",
			vars:     map[string]any{"greeting": "Hello {{target}}", "target": "{{planet||upper}}", "planet": "earth"},
			expected: "Hello EARTH",
		},
		{
			name:     "transform applied after expansion",
			content:  "{{title||kebabCase}}",
			vars:     map[string]any{"title": "{{first}} Service", "first": "Billing"},
			expected: "billing-service",
		},
		{
			name:     "missing left untouched",
			content:  "keep {{unknown}} here",
			vars:     map[string]any{},
			expected: "keep {{unknown}} here",
		},
		{
			name:     "non string values",
			content:  "port={{port}} debug={{debug}}",
			vars:     map[string]any{"port": 8080, "debug": true},
			expected: "port=8080 debug=true",
		},
		{
			name:     "special variables",
			content:  "{{year}}-{{month}}-{{day}} {{date}} {{datetime}} {{timestamp}}",
			vars:     nil,
			opts:     Options{Now: fixedClock},
			expected: "2024-03-07 2024-03-07 2024-03-07 09:05:03 2024-03-07T09:05:03.000Z",
		},
		{
			name:     "variable shadows special",
			content:  "{{year}}",
			vars:     map[string]any{"year": "1999"},
			opts:     Options{Now: fixedClock},
			expected: "1999",
		},
		{
			name:     "whitespace around name",
			content:  "{{ name }}",
			vars:     map[string]any{"name": "x"},
			expected: "x",
		},
		{
			name:     "malformed braces ignored",
			content:  "{{}} {name} {{a}b}}",
			vars:     map[string]any{"name": "x", "a": "y"},
			expected: "{{}} {name} {{a}b}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Substitute(tt.content, tt.vars, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSubstituteMissingVariable(t *testing.T) {
	_, err := Substitute("Hello {{name}}", map[string]any{}, Options{ThrowOnMissing: true})
	require.Error(t, err)
	assert.True(t, scerrors.IsMissingVariable(err))
	assert.Equal(t, "name", scerrors.VariableName(err))

	// a default satisfies the placeholder even when missing is fatal
	result, err := Substitute("{{name|anon}}", nil, Options{ThrowOnMissing: true})
	require.NoError(t, err)
	assert.Equal(t, "anon", result)

	// empty default segment is no default
	_, err = Substitute("{{name||upper}}", nil, Options{ThrowOnMissing: true})
	assert.True(t, scerrors.IsMissingVariable(err))
}

func TestSubstituteUnknownTransform(t *testing.T) {
	for _, throw := range []bool{true, false} {
		_, err := Substitute("{{name||shout}}", map[string]any{"name": "x"}, Options{ThrowOnMissing: throw})
		require.Error(t, err)
		assert.True(t, scerrors.IsUnknownTransform(err))
	}

	// unknown transform fails even when the variable is missing
	_, err := Substitute("{{missing||uper}}", nil, Options{})
	require.Error(t, err)
	assert.True(t, scerrors.IsUnknownTransform(err))
	assert.Contains(t, err.Error(), "upper")
}

func TestSubstituteCircularReference(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		vars     map[string]any
		variable string
	}{
		{
			name:     "two variable cycle",
			content:  "{{a}}",
			vars:     map[string]any{"a": "{{b}}", "b": "{{a}}"},
			variable: "a",
		},
		{
			name:     "indirect cycle entered from outside",
			content:  "{{c}}",
			vars:     map[string]any{"a": "{{b}}", "c": "{{b}}", "b": "{{a}}"},
			variable: "b",
		},
		{
			name:     "three variable cycle with text",
			content:  "x {{a}} y",
			vars:     map[string]any{"a": "1{{b}}", "b": "2{{c}}", "c": "3{{a}}"},
			variable: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// detection does not depend on the depth budget
			for _, depth := range []int{1, 2, 3, 10, 100} {
				for _, allow := range []bool{false, true} {
					_, err := Substitute(tt.content, tt.vars, Options{MaxDepth: depth, AllowCircular: allow})
					require.Error(t, err)
					assert.True(t, scerrors.IsCircularReference(err))
					assert.Equal(t, tt.variable, scerrors.VariableName(err), "depth %d", depth)
					assert.Contains(t, err.Error(), "circular reference detected")
				}
			}
		})
	}
}

func TestSubstituteSelfReference(t *testing.T) {
	result, err := Substitute("{{self}}", map[string]any{"self": "{{self}}"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "{{self}}", result)
}

func TestSubstituteDepthExceeded(t *testing.T) {
	vars := map[string]any{"grow": "x{{grow}}"}

	_, err := Substitute("{{grow}}", vars, Options{MaxDepth: 3})
	require.Error(t, err)
	assert.True(t, scerrors.IsCircularReference(err))

	result, err := Substitute("{{grow}}", vars, Options{MaxDepth: 3, AllowCircular: true})
	require.NoError(t, err)
	assert.Equal(t, "xxx{{grow}}", result)
}

func TestSubstituteChainDepth(t *testing.T) {
	vars := map[string]any{
		"v0": "end",
	}
	for i := 1; i <= 5; i++ {
		vars["v"+string(rune('0'+i))] = "{{v" + string(rune('0'+i-1)) + "}}"
	}

	result, err := Substitute("{{v5}}", vars, Options{MaxDepth: 5})
	require.NoError(t, err)
	assert.Equal(t, "end", result)

	_, err = Substitute("{{v5}}", vars, Options{MaxDepth: 4})
	require.Error(t, err)
	assert.True(t, scerrors.IsCircularReference(err))
}

func TestSubstituteUUIDStableWithinCall(t *testing.T) {
	result, err := Substitute("{{uuid}}|{{uuid}}", nil, Options{})
	require.NoError(t, err)
	parts := []rune(result)
	assert.Len(t, parts, 36*2+1)
	assert.Equal(t, result[:36], result[37:])
}

func TestExtractVariables(t *testing.T) {
	content := "{{a}} {{b|x}} \\{{c}} {{a||upper}} {{d.e}}"

	seq := ExtractVariables(content)
	assert.Equal(t, []string{"a", "b", "d.e"}, slices.Collect(seq))

	// single-use: a second range yields nothing
	assert.Empty(t, slices.Collect(seq))
}

func TestExtractVariablesResumes(t *testing.T) {
	seq := ExtractVariables("{{one}} {{two}} {{three}}")

	var first []string
	for name := range seq {
		first = append(first, name)
		break
	}
	assert.Equal(t, []string{"one"}, first)
	assert.Equal(t, []string{"two", "three"}, slices.Collect(seq))
}

func TestHasPlaceholders(t *testing.T) {
	assert.True(t, HasPlaceholders("a {{b}}"))
	assert.False(t, HasPlaceholders("a \\{{b}}"))
	assert.False(t, HasPlaceholders("plain"))
}
