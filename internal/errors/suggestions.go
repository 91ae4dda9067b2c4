package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// SuggestionContext provides context for generating suggestions
type SuggestionContext struct {
	// Templates lists the template IDs the configured store offers
	Templates  []string
	ConfigPath string
	ProjectDir string
}

// Suggest returns remediation hints for the first ScaffoldError in err's
// chain whose code has any.
func Suggest(err error, ctx *SuggestionContext) []ErrorSuggestion {
	if ctx == nil {
		ctx = &SuggestionContext{}
	}

	for err != nil {
		var se *ScaffoldError
		if !errors.As(err, &se) {
			return nil
		}
		if s := suggestionsFor(se, ctx); len(s) > 0 {
			return s
		}
		err = se.Cause
	}

	return nil
}

func suggestionsFor(se *ScaffoldError, ctx *SuggestionContext) []ErrorSuggestion {
	switch se.Code {
	case ErrCodeMissingVariable:
		name := se.Variable
		if name == "" {
			name = "name"
		}
		return []ErrorSuggestion{
			{
				Title:       "Provide the variable",
				Description: "Pass every required variable on the command line",
				Command:     fmt.Sprintf("scaffold create --var %s=<value>", strings.Split(name, ",")[0]),
			},
			{
				Title:       "Inspect template variables",
				Description: "List what the template declares and which variables have defaults",
				Command:     "scaffold vars <template>",
			},
		}

	case ErrCodeUnknownTransform:
		return []ErrorSuggestion{{
			Title:       "Use a registered transform",
			Description: "Available: upper, lower, camelCase, pascalCase, kebabCase, snakeCase, capitalize, trim",
			Example:     "{{name||kebabCase}}",
		}}

	case ErrCodeCircularReference:
		return []ErrorSuggestion{{
			Title:       "Break the reference cycle",
			Description: "A variable's value refers back to itself through other variables",
		}}

	case ErrCodeManifestNotFound:
		return []ErrorSuggestion{
			{
				Title:       "Initialize a project",
				Description: "No .scaffold/manifest.json was found in this directory or its parents",
				Command:     "scaffold create <name> --template <template>",
			},
			{
				Title:   "Point at the project directory",
				Command: "scaffold validate " + orDefault(ctx.ProjectDir, "<project-dir>"),
			},
		}

	case ErrCodeTemplateConflict:
		return []ErrorSuggestion{{
			Title:       "Pick another root folder",
			Description: "Two active templates cannot share a root folder; remove one first",
			Command:     "scaffold remove <template>",
		}}

	case ErrCodeTemplateNotFound, ErrCodeTemplateLoad:
		s := []ErrorSuggestion{{
			Title:   "List available templates",
			Command: "scaffold templates list",
		}}
		if len(ctx.Templates) > 0 {
			s = append(s, ErrorSuggestion{
				Title:       "Available templates",
				Description: strings.Join(ctx.Templates, ", "),
			})
		}
		return s

	case ErrCodeConfigInvalid:
		return []ErrorSuggestion{{
			Title:       "Check the configuration file",
			Description: "Fix the invalid setting or remove it to use the default",
			Command:     "cat " + orDefault(ctx.ConfigPath, ".scaffold.yml"),
		}}

	case ErrCodeProjectExists:
		return []ErrorSuggestion{{
			Title:   "Add a template to the existing project instead",
			Command: "scaffold extend --template <template>",
		}}
	}

	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	return FormatSuggestions(e.Title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// Enhance wraps err with the suggestions Suggest finds for it. Errors
// without suggestions are returned unchanged.
func Enhance(err error, ctx *SuggestionContext) error {
	if err == nil {
		return nil
	}
	suggestions := Suggest(err, ctx)
	if len(suggestions) == 0 {
		return err
	}
	return &EnhancedError{
		OriginalError: err,
		Title:         err.Error(),
		Suggestions:   suggestions,
	}
}
