package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context, creating a ReportError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *ReportError {
	if err == nil {
		return nil
	}

	// If it's already a ReportError, preserve its properties but update the message
	var re *ReportError
	if errors.As(err, &re) {
		return &ReportError{
			Type:      errType,
			Code:      code,
			Message:   message,
			Cause:     re,
			Template:  re.Template,
			Status:    re.Status,
			Context:   re.Context,
			Retryable: re.Retryable,
		}
	}

	return &ReportError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, message string) *ReportError {
	return Wrap(err, ErrorTypeIO, "ERR_IO", message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, message string) *ReportError {
	return Wrap(err, ErrorTypeConfig, ErrCodeConfigInvalid, message)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, message string) *ReportError {
	return Wrap(err, ErrorTypeInternal, ErrCodeInternalError, message)
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var re *ReportError
	if errors.As(err, &re) {
		return re.Error()
	}

	return err.Error()
}

// Message returns the innermost human-readable message. Error documents
// show it next to the full chain.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var re *ReportError
	if errors.As(err, &re) {
		if re.Cause != nil {
			return fmt.Sprintf("%s: %v", re.Message, re.Cause)
		}
		return re.Message
	}

	return err.Error()
}

// As is errors.As, re-exported so callers need a single errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}
