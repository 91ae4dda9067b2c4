// Package validation checks user supplied names and template paths before
// anything touches the filesystem: project names, variable names and the
// relative paths templates declare, which must never escape their root.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/scaffold/internal/errors"
)

// MaxNameLength bounds project names.
const MaxNameLength = 214

var (
	projectNameRe  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	variableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// reservedNames cannot be used as project names on at least one platform.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "lpt1": true, "node_modules": true,
}

// ValidateProjectName checks a project name for use as a directory name.
func ValidateProjectName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.InvalidName(name, "name cannot be empty")
	case len(name) > MaxNameLength:
		return errors.InvalidName(name, fmt.Sprintf("name is longer than %d characters", MaxNameLength))
	case !projectNameRe.MatchString(name):
		return errors.InvalidName(name, "use letters, digits, '.', '_' or '-' and start with a letter or digit")
	case reservedNames[strings.ToLower(name)]:
		return errors.InvalidName(name, "name is reserved")
	}
	return nil
}

// ValidateVariableName checks a variable name given on the command line.
// Dotted names address nested values.
func ValidateVariableName(name string) error {
	if !variableNameRe.MatchString(name) {
		return errors.InvalidName(name, "variable names are identifiers, optionally dot separated")
	}
	return nil
}

// ValidatePath validates a template-relative path to prevent path traversal.
// Empty paths and "." denote the root itself and are accepted.
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}
	if strings.ContainsRune(path, 0) {
		return errors.PathValidationError(path, "contains a NUL byte")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.HasPrefix(path, `\`) {
		return errors.PathValidationError(path, "absolute paths are not allowed")
	}

	cleanPath := filepath.Clean(filepath.FromSlash(path))
	if cleanPath == "." {
		return nil
	}
	if !filepath.IsLocal(cleanPath) {
		return errors.PathValidationError(path, "traversal")
	}
	return nil
}

// JoinWithin joins a validated relative path onto root.
func JoinWithin(root, rel string) (string, error) {
	if err := ValidatePath(rel); err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// SanitizeInput drops NUL and other control characters from user input.
// Tabs and line breaks are kept.
func SanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}
