package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Wrap wraps an error with additional context, creating a ScaffoldError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *ScaffoldError {
	if err == nil {
		return nil
	}

	// If it's already a ScaffoldError, keep its location context
	var se *ScaffoldError
	if errors.As(err, &se) {
		return &ScaffoldError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       err,
			Context:     se.Context,
			Path:        se.Path,
			Variable:    se.Variable,
			Recoverable: se.Recoverable,
		}
	}

	return &ScaffoldError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeSubstitution,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *ScaffoldError {
	se := Wrap(err, ErrorTypeIO, code, message)
	if se != nil {
		se.Recoverable = false
	}
	return se
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *ScaffoldError {
	se := Wrap(err, ErrorTypeConfig, code, message)
	if se != nil {
		se.Recoverable = false
	}
	return se
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, code, message string) *ScaffoldError {
	se := Wrap(err, ErrorTypeInternal, code, message)
	if se != nil {
		se.Recoverable = false
	}
	return se
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

// GetErrorContext extracts context information from a ScaffoldError
func GetErrorContext(err error) map[string]interface{} {
	var se *ScaffoldError
	if errors.As(err, &se) {
		context := make(map[string]interface{})
		for k, v := range se.Context {
			context[k] = v
		}
		if se.Path != "" {
			context["path"] = se.Path
		}
		if se.Variable != "" {
			context["variable"] = se.Variable
		}
		context["type"] = string(se.Type)
		context["code"] = se.Code
		context["recoverable"] = se.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// ExtractCause extracts the root cause from a wrapped error
func ExtractCause(err error) error {
	for err != nil {
		var se *ScaffoldError
		if errors.As(err, &se) {
			if se.Cause == nil {
				return se
			}
			err = se.Cause
		} else {
			return err
		}
	}
	return nil
}

// CombineErrors combines multiple errors into a single error with context
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}

	messages := make([]string, 0, len(nonNil))
	for _, err := range nonNil {
		messages = append(messages, err.Error())
	}

	return &ScaffoldError{
		Type:    ErrorTypeInternal,
		Code:    "ERR_MULTIPLE",
		Message: fmt.Sprintf("multiple errors occurred: %s", strings.Join(messages, "; ")),
		Cause:   errors.Join(nonNil...),
	}
}
