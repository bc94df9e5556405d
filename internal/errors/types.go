// Package errors defines the failure taxonomy of the report pipeline.
//
// Every failure is a *ReportError carrying an ErrorType. Only scan
// rejections destroy stored content; every render-path type is caught at
// the render boundary and turned into an error document.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	// ErrorTypeParse: the structural scanner could not build a syntax tree.
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeScanRejection: nonzero findings from either scanner. Terminal.
	ErrorTypeScanRejection ErrorType = "scan_rejection"
	// ErrorTypeCompile: accepted source failed the markup-to-script rewrite.
	ErrorTypeCompile ErrorType = "compile"
	// ErrorTypeExecution: the wrapped unit threw or produced no component.
	ErrorTypeExecution ErrorType = "execution"
	// ErrorTypeExternalService: generation or upstream data call failed.
	ErrorTypeExternalService ErrorType = "external_service"
	// ErrorTypeRender: tree resolution or serialization failed.
	ErrorTypeRender ErrorType = "render"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeUnparseable        = "ERR_UNPARSEABLE"
	ErrCodeRejected           = "ERR_SCAN_REJECTED"
	ErrCodeCompileFailed      = "ERR_COMPILE_FAILED"
	ErrCodeExecutionFailed    = "ERR_EXECUTION_FAILED"
	ErrCodeNoComponent        = "ERR_NO_COMPONENT"
	ErrCodeInterrupted        = "ERR_INTERRUPTED"
	ErrCodeRenderFailed       = "ERR_RENDER_FAILED"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeServiceTimeout     = "ERR_SERVICE_TIMEOUT"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeUnknownModel       = "ERR_UNKNOWN_MODEL"
	ErrCodeBadResponse        = "ERR_BAD_RESPONSE"
	ErrCodeTemplateNotFound   = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeTemplateExists     = "ERR_TEMPLATE_EXISTS"
	ErrCodeInvalidName        = "ERR_INVALID_NAME"
	ErrCodeInvalidExtension   = "ERR_INVALID_EXTENSION"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInternalError      = "ERR_INTERNAL"
)

// ReportError is a structured error type with context.
type ReportError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Template string
	// Status is the caller-facing HTTP status, zero when not mapped
	Status  int
	Context map[string]interface{}
	// Retryable marks outcomes the caller may retry (timeouts, unavailable)
	Retryable bool
}

// Error implements the error interface.
func (e *ReportError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Template != "" {
		parts = append(parts, "template:"+e.Template)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ReportError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by type and code.
func (e *ReportError) Is(target error) bool {
	var t *ReportError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ReportError) WithContext(key string, value interface{}) *ReportError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithTemplate adds template context.
func (e *ReportError) WithTemplate(name string) *ReportError {
	e.Template = name

	return e
}

// WithStatus sets the caller-facing status.
func (e *ReportError) WithStatus(status int) *ReportError {
	e.Status = status

	return e
}

// NewParseError creates a parse failure.
func NewParseError(message string, cause error) *ReportError {
	return &ReportError{
		Type:    ErrorTypeParse,
		Code:    ErrCodeUnparseable,
		Message: message,
		Cause:   cause,
		Status:  http.StatusUnprocessableEntity,
	}
}

// NewScanRejection creates a terminal admission rejection.
func NewScanRejection(template, message string) *ReportError {
	return &ReportError{
		Type:     ErrorTypeScanRejection,
		Code:     ErrCodeRejected,
		Message:  message,
		Template: template,
		Status:   http.StatusUnprocessableEntity,
	}
}

// NewCompileError creates a compile failure.
func NewCompileError(template, message string, cause error) *ReportError {
	return &ReportError{
		Type:     ErrorTypeCompile,
		Code:     ErrCodeCompileFailed,
		Message:  message,
		Cause:    cause,
		Template: template,
		Status:   http.StatusInternalServerError,
	}
}

// NewExecutionError creates an execution failure.
func NewExecutionError(template, code, message string, cause error) *ReportError {
	return &ReportError{
		Type:     ErrorTypeExecution,
		Code:     code,
		Message:  message,
		Cause:    cause,
		Template: template,
		Status:   http.StatusInternalServerError,
	}
}

// NewRenderError creates a serialization failure.
func NewRenderError(template, message string, cause error) *ReportError {
	return &ReportError{
		Type:     ErrorTypeRender,
		Code:     ErrCodeRenderFailed,
		Message:  message,
		Cause:    cause,
		Template: template,
		Status:   http.StatusInternalServerError,
	}
}

// NewExternalServiceError creates an external service failure mapped to a
// caller-facing status.
func NewExternalServiceError(code, message string, status int, cause error) *ReportError {
	return &ReportError{
		Type:      ErrorTypeExternalService,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Status:    status,
		Retryable: status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ReportError {
	return &ReportError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewNotFoundError creates a missing-template error.
func NewNotFoundError(template string, cause error) *ReportError {
	return &ReportError{
		Type:     ErrorTypeIO,
		Code:     ErrCodeTemplateNotFound,
		Message:  "template not found",
		Cause:    cause,
		Template: template,
		Status:   http.StatusNotFound,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *ReportError {
	return &ReportError{
		Type:    ErrorTypeConfig,
		Code:    ErrCodeConfigInvalid,
		Message: message,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal.
func TypeOf(err error) ErrorType {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Type
	}

	return ErrorTypeInternal
}

// IsScanRejection checks if an error is a gate rejection.
func IsScanRejection(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeScanRejection
}

// IsExternalService checks if an error came from an external collaborator.
func IsExternalService(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeExternalService
}

// IsRetryable checks if the caller may retry the operation.
func IsRetryable(err error) bool {
	var re *ReportError
	if errors.As(err, &re) {
		return re.Retryable
	}

	return false
}

// StatusOf returns the caller-facing HTTP status for err.
func StatusOf(err error) int {
	var re *ReportError
	if errors.As(err, &re) && re.Status != 0 {
		return re.Status
	}

	return http.StatusInternalServerError
}
