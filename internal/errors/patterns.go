package errors

import (
	"fmt"
	"strings"
)

// Substitution error patterns

// MissingVariable creates the error raised when a placeholder has no
// resolvable value and missing variables are fatal.
func MissingVariable(name string) *ScaffoldError {
	return &ScaffoldError{
		Type:        ErrorTypeSubstitution,
		Code:        ErrCodeMissingVariable,
		Message:     fmt.Sprintf("missing variable %q", name),
		Variable:    name,
		Recoverable: true,
	}
}

// MissingRequiredVariables creates the error raised when a template's
// required variables were not provided.
func MissingRequiredVariables(templateName string, names []string) *ScaffoldError {
	return &ScaffoldError{
		Type:        ErrorTypeSubstitution,
		Code:        ErrCodeMissingVariable,
		Message:     fmt.Sprintf("template %s is missing required variables: %s", templateName, strings.Join(names, ", ")),
		Variable:    strings.Join(names, ","),
		Context:     map[string]interface{}{"template": templateName, "variables": names},
		Recoverable: true,
	}
}

// UnknownTransform creates the error raised for an unregistered transform.
func UnknownTransform(name string, suggestions ...string) *ScaffoldError {
	msg := fmt.Sprintf("unknown transform %q", name)
	if len(suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
	}
	return &ScaffoldError{
		Type:        ErrorTypeSubstitution,
		Code:        ErrCodeUnknownTransform,
		Message:     msg,
		Context:     map[string]interface{}{"transform": name},
		Recoverable: false,
	}
}

// CircularReference creates the error raised when a variable's resolution
// chain revisits a variable that is still being resolved.
func CircularReference(variable string, chain []string) *ScaffoldError {
	path := append(append([]string{}, chain...), variable)
	return &ScaffoldError{
		Type:     ErrorTypeSubstitution,
		Code:     ErrCodeCircularReference,
		Message:  fmt.Sprintf("circular reference detected for variable %q (%s)", variable, strings.Join(path, " -> ")),
		Variable: variable,
		Context:  map[string]interface{}{"chain": path, "reason": "cycle"},
	}
}

// DepthExceeded creates the circular-reference error raised when expansion
// still has placeholders left after maxDepth passes.
func DepthExceeded(maxDepth int, remaining []string) *ScaffoldError {
	variable := ""
	if len(remaining) > 0 {
		variable = remaining[0]
	}
	return &ScaffoldError{
		Type:     ErrorTypeSubstitution,
		Code:     ErrCodeCircularReference,
		Message:  fmt.Sprintf("maximum substitution depth %d exceeded, unresolved: %s", maxDepth, strings.Join(remaining, ", ")),
		Variable: variable,
		Context:  map[string]interface{}{"max_depth": maxDepth, "reason": "max_depth", "remaining": remaining},
	}
}

// InvalidVariable creates the error raised when a provided value does not
// match the variable's declared pattern.
func InvalidVariable(name, value, pattern string) *ScaffoldError {
	return &ScaffoldError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeInvalidVariable,
		Message:     fmt.Sprintf("value %q for variable %q does not match pattern %s", value, name, pattern),
		Variable:    name,
		Recoverable: true,
	}
}

// Template and manifest error patterns

// ManifestNotFound creates the error raised when no governing manifest is
// found above start.
func ManifestNotFound(start string, levels int) *ScaffoldError {
	return &ScaffoldError{
		Type:    ErrorTypeManifest,
		Code:    ErrCodeManifestNotFound,
		Message: fmt.Sprintf("no .scaffold/manifest.json found within %d levels", levels),
		Path:    start,
	}
}

// ManifestInvalid creates the error raised for an unreadable manifest.
func ManifestInvalid(path string, cause error) *ScaffoldError {
	return &ScaffoldError{
		Type:    ErrorTypeManifest,
		Code:    ErrCodeManifestInvalid,
		Message: "manifest could not be parsed",
		Path:    path,
		Cause:   cause,
	}
}

// TemplateConflict creates the error raised when two active templates would
// share a root folder.
func TemplateConflict(rootFolder, existing, incoming string) *ScaffoldError {
	return &ScaffoldError{
		Type: ErrorTypeTemplate,
		Code: ErrCodeTemplateConflict,
		Message: fmt.Sprintf("templates %s and %s both use root folder %q",
			existing, incoming, rootFolder),
		Path:    rootFolder,
		Context: map[string]interface{}{"existing": existing, "incoming": incoming},
	}
}

// TemplateLoad creates the error raised when a referenced template cannot
// be fetched.
func TemplateLoad(id string, cause error) *ScaffoldError {
	return &ScaffoldError{
		Type:        ErrorTypeTemplate,
		Code:        ErrCodeTemplateLoad,
		Message:     fmt.Sprintf("template %s could not be loaded", id),
		Cause:       cause,
		Context:     map[string]interface{}{"template": id},
		Recoverable: true,
	}
}

// TemplateNotFound creates the error raised when no template matches id.
func TemplateNotFound(id string, suggestions ...string) *ScaffoldError {
	msg := fmt.Sprintf("template %q not found", id)
	if len(suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
	}
	return &ScaffoldError{
		Type:        ErrorTypeTemplate,
		Code:        ErrCodeTemplateNotFound,
		Message:     msg,
		Context:     map[string]interface{}{"template": id, "suggestions": suggestions},
		Recoverable: true,
	}
}

// ProjectExists creates the error raised when creating a project over an
// existing manifest.
func ProjectExists(path string) *ScaffoldError {
	return &ScaffoldError{
		Type:    ErrorTypeManifest,
		Code:    ErrCodeProjectExists,
		Message: "a scaffold project already exists here",
		Path:    path,
	}
}

// Name and path error patterns

// InvalidName creates project/template name validation errors.
func InvalidName(name, reason string) *ScaffoldError {
	return &ScaffoldError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeInvalidName,
		Message:     fmt.Sprintf("invalid name %q: %s", name, reason),
		Recoverable: true,
	}
}

// PathValidationError creates path validation errors.
func PathValidationError(path, reason string) *ScaffoldError {
	code := ErrCodeInvalidPath
	if reason == "traversal" {
		code = ErrCodePathTraversal
	}
	return &ScaffoldError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: "invalid path: " + reason,
		Path:    path,
	}
}

// Data layer error patterns

// FileOperationError creates file operation errors
func FileOperationError(operation, filePath, message string, cause error) *ScaffoldError {
	return &ScaffoldError{
		Type:    ErrorTypeIO,
		Code:    fmt.Sprintf("ERR_FILE_%s", operation),
		Message: fmt.Sprintf("%s failed: %s", strings.ToLower(operation), message),
		Cause:   cause,
		Path:    filePath,
		Context: map[string]interface{}{"file_path": filePath},
	}
}

// ConfigurationError creates configuration-related errors
func ConfigurationError(setting, message string, value interface{}) *ScaffoldError {
	return &ScaffoldError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf("invalid configuration for %s: %s", setting, message),
		Context: map[string]interface{}{"setting": setting, "value": value},
	}
}

// OperationFailed wraps a fatal error of a top-level operation, carrying the
// cause's message so callers see a single error.
func OperationFailed(operation string, cause error) *ScaffoldError {
	if cause == nil {
		return nil
	}
	return &ScaffoldError{
		Type:    ErrorTypeInternal,
		Code:    fmt.Sprintf("ERR_%s_FAILED", strings.ToUpper(operation)),
		Message: operation + " failed",
		Cause:   cause,
	}
}
