// Package errors provides the structured error type used across scaffold,
// the error codes of its taxonomy and helpers for wrapping and inspecting
// error chains.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeSubstitution ErrorType = "substitution"
	ErrorTypeTemplate     ErrorType = "template"
	ErrorTypeManifest     ErrorType = "manifest"
	ErrorTypeIO           ErrorType = "io"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeInternal     ErrorType = "internal"
)

// ScaffoldError is a structured error type with context.
type ScaffoldError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	// Path is the filesystem path the error relates to, if any
	Path string
	// Variable is the variable name the error relates to, if any
	Variable    string
	Recoverable bool
}

// Error implements the error interface.
func (e *ScaffoldError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ScaffoldError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *ScaffoldError) Is(target error) bool {
	var t *ScaffoldError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ScaffoldError) WithContext(key string, value interface{}) *ScaffoldError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath adds the filesystem path the error relates to.
func (e *ScaffoldError) WithPath(path string) *ScaffoldError {
	e.Path = path

	return e
}

// Common error codes.
const (
	ErrCodeMissingVariable   = "ERR_MISSING_VARIABLE"
	ErrCodeUnknownTransform  = "ERR_UNKNOWN_TRANSFORM"
	ErrCodeCircularReference = "ERR_CIRCULAR_REFERENCE"
	ErrCodeInvalidVariable   = "ERR_INVALID_VARIABLE"
	ErrCodeManifestNotFound  = "ERR_MANIFEST_NOT_FOUND"
	ErrCodeManifestInvalid   = "ERR_MANIFEST_INVALID"
	ErrCodeTemplateConflict  = "ERR_TEMPLATE_CONFLICT"
	ErrCodeTemplateLoad      = "ERR_TEMPLATE_LOAD"
	ErrCodeTemplateNotFound  = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeInvalidName       = "ERR_INVALID_NAME"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodePathTraversal     = "ERR_PATH_TRAVERSAL"
	ErrCodeProjectExists     = "ERR_PROJECT_EXISTS"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeInternalError     = "ERR_INTERNAL"
)

// HasCode reports whether any ScaffoldError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var se *ScaffoldError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Cause
	}

	return false
}

// IsMissingVariable reports whether err is a missing-variable error.
func IsMissingVariable(err error) bool { return HasCode(err, ErrCodeMissingVariable) }

// IsUnknownTransform reports whether err is an unknown-transform error.
func IsUnknownTransform(err error) bool { return HasCode(err, ErrCodeUnknownTransform) }

// IsCircularReference reports whether err is a circular-reference error,
// including the depth-exceeded form.
func IsCircularReference(err error) bool { return HasCode(err, ErrCodeCircularReference) }

// IsManifestNotFound reports whether err is a manifest-not-found error.
func IsManifestNotFound(err error) bool { return HasCode(err, ErrCodeManifestNotFound) }

// IsTemplateConflict reports whether err is a template root-folder conflict.
func IsTemplateConflict(err error) bool { return HasCode(err, ErrCodeTemplateConflict) }

// IsTemplateLoad reports whether err is a template load failure.
func IsTemplateLoad(err error) bool {
	return HasCode(err, ErrCodeTemplateLoad) || HasCode(err, ErrCodeTemplateNotFound)
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *ScaffoldError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// VariableName returns the variable an error chain names, or "".
func VariableName(err error) string {
	for err != nil {
		var se *ScaffoldError
		if !errors.As(err, &se) {
			return ""
		}
		if se.Variable != "" {
			return se.Variable
		}
		err = se.Cause
	}

	return ""
}
