package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/scaffold/internal/logging"
)

// Limits enforced on numeric settings.
const (
	MaxSubstitutionDepth = 1000
	MaxSearchDepth       = 256
	maxSensibleDebounce  = 10 * time.Second
)

// OutputFormats lists the report formats the CLI renders.
var OutputFormats = []string{"text", "json", "yaml"}

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string      `json:"field" yaml:"field"`
	Value       interface{} `json:"value" yaml:"value"`
	Message     string      `json:"message" yaml:"message"`
	Suggestions []string    `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool              `json:"valid" yaml:"valid"`
	Errors   []ValidationError `json:"errors" yaml:"errors"`
	Warnings []ValidationError `json:"warnings" yaml:"warnings"`
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		writeIssues(&builder, vr.Errors)
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}

	return builder.String()
}

func writeIssues(b *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		fmt.Fprintf(b, "  • %s: %s\n", issue.Field, issue.Message)
		for _, suggestion := range issue.Suggestions {
			fmt.Fprintf(b, "    → %s\n", suggestion)
		}
	}
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateSubstitutionDetails(&config.Substitution, result)
	validateValidationDetails(&config.Validation, result)
	validateTemplatesDetails(&config.Templates, result)
	validateOutputDetails(&config.Output, result)
	validateWatchDetails(&config.Watch, result)
	validateLogDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateSubstitutionDetails(config *SubstitutionConfig, result *ValidationResult) {
	if config.MaxDepth < 1 || config.MaxDepth > MaxSubstitutionDepth {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "substitution.max_depth",
			Value:   config.MaxDepth,
			Message: fmt.Sprintf("max depth %d is not in range 1-%d", config.MaxDepth, MaxSubstitutionDepth),
			Suggestions: []string{
				fmt.Sprintf("The default of %d covers values nested a few levels deep", DefaultMaxDepth),
			},
		})
	}

	if config.AllowCircular {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "substitution.allow_circular",
			Value:   true,
			Message: "circular values are expanded until max_depth and written partially expanded",
			Suggestions: []string{
				"Leave allow_circular off so cycles are reported as errors",
			},
		})
	}
}

func validateValidationDetails(config *ValidationConfig, result *ValidationResult) {
	if config.SearchDepth < 1 || config.SearchDepth > MaxSearchDepth {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "validation.search_depth",
			Value:   config.SearchDepth,
			Message: fmt.Sprintf("search depth %d is not in range 1-%d", config.SearchDepth, MaxSearchDepth),
			Suggestions: []string{
				fmt.Sprintf("Use %d to search as many parent directories as the default", DefaultSearchDepth),
			},
		})
	}
}

func validateTemplatesDetails(config *TemplatesConfig, result *ValidationResult) {
	for i, path := range config.Paths {
		field := fmt.Sprintf("templates.paths[%d]", i)
		if strings.TrimSpace(path) == "" || strings.ContainsRune(path, 0) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: "template path is empty or contains a NUL byte",
				Suggestions: []string{
					"Remove the entry or point it at a directory of templates",
				},
			})
			continue
		}

		if !pathExists(path) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   field,
				Value:   path,
				Message: "directory does not exist",
				Suggestions: []string{
					"Create the directory: mkdir -p " + path,
					"Check for typos in the path",
				},
			})
		}
	}
}

func validateOutputDetails(config *OutputConfig, result *ValidationResult) {
	if !contains(OutputFormats, config.Format) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "output.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown output format %q", config.Format),
			Suggestions: []string{
				"Available formats: " + strings.Join(OutputFormats, ", "),
			},
		})
	}
}

func validateWatchDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce.String(),
			Message: "debounce cannot be negative",
			Suggestions: []string{
				"Use a value such as 300ms",
			},
		})
	} else if config.Debounce > maxSensibleDebounce {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce.String(),
			Message: "changes will be revalidated only after a long pause",
			Suggestions: []string{
				"Values between 100ms and 1s keep watch mode responsive",
			},
		})
	}

	for i, pattern := range config.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("watch.ignore[%d]", i),
				Value:   pattern,
				Message: "invalid glob pattern",
				Suggestions: []string{
					"Patterns use doublestar syntax, e.g. '**/node_modules/**'",
				},
			})
		}
	}
}

func validateLogDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.level",
			Value:   config.Level,
			Message: err.Error(),
			Suggestions: []string{
				"Available levels: debug, info, warn, error",
			},
		})
	}

	if config.Format != "json" && config.Format != "console" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.format",
			Value:   config.Format,
			Message: fmt.Sprintf("unknown log format %q", config.Format),
			Suggestions: []string{
				"Use 'console' for terminals and 'json' for log collectors",
			},
		})
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
