package models

import (
	"errors"
	"fmt"
)

// Process exit codes shared by the utilities
const (
	ExitOK                = 0
	ExitInvalid           = 22
	ExitMissingOptional   = -22
	ExitNetCDFLayoutError = 99
)

// ErrorKind classifies a fatal utility failure
type ErrorKind string

const (
	KindUsage             ErrorKind = "usage"
	KindMissingFile       ErrorKind = "missing_file"
	KindMissingField      ErrorKind = "missing_field"
	KindInconsistentIndex ErrorKind = "inconsistent_index"
	KindUnrecoverableData ErrorKind = "unrecoverable_data"
	KindFormatMismatch    ErrorKind = "format_mismatch"
	KindInvalidInput      ErrorKind = "invalid_input"
)

// ToolError is a classified fatal error carrying the process exit code
type ToolError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// IsTransient returns false as no utility failure is worth retrying
func (e *ToolError) IsTransient() bool {
	return false
}

// NewUsageError reports a wrong positional argument count
func NewUsageError(got int, usage string) *ToolError {
	return &ToolError{
		Kind:    KindUsage,
		Code:    ExitInvalid,
		Message: fmt.Sprintf("%d arguments were used, expected %s", got, usage),
	}
}

// NewMissingFileError reports a required input that does not exist
func NewMissingFileError(path string) *ToolError {
	return &ToolError{
		Kind:    KindMissingFile,
		Code:    ExitInvalid,
		Message: fmt.Sprintf("Unable to open %s", path),
	}
}

// NewMissingFieldError reports a column or attribute absent from an input
func NewMissingFieldError(path, field string) *ToolError {
	return &ToolError{
		Kind:    KindMissingField,
		Code:    ExitInvalid,
		Message: fmt.Sprintf("%s does not contain the %s field", path, field),
	}
}

// NewInconsistentIndexError reports time series whose timestamps differ
func NewInconsistentIndexError(path, detail string) *ToolError {
	return &ToolError{
		Kind:    KindInconsistentIndex,
		Code:    ExitInvalid,
		Message: fmt.Sprintf("inconsistent timestamps in %s: %s", path, detail),
	}
}

// NewFormatMismatchError reports inputs whose layouts cannot be combined
func NewFormatMismatchError(path, detail string) *ToolError {
	return &ToolError{
		Kind:    KindFormatMismatch,
		Code:    ExitInvalid,
		Message: fmt.Sprintf("%s does not match the expected layout: %s", path, detail),
	}
}

// NewUnrecoverableDataError reports input values that cannot be used
func NewUnrecoverableDataError(message string) *ToolError {
	return &ToolError{
		Kind:    KindUnrecoverableData,
		Code:    ExitInvalid,
		Message: message,
	}
}

// NewNetCDFLayoutError reports a netCDF file without the expected dimensions
// or variable
func NewNetCDFLayoutError(path, detail string) *ToolError {
	return &ToolError{
		Kind:    KindFormatMismatch,
		Code:    ExitNetCDFLayoutError,
		Message: fmt.Sprintf("%s: %s", path, detail),
	}
}

// NewInvalidInputError reports malformed content in an input file or argument
func NewInvalidInputError(message string, err error) *ToolError {
	return &ToolError{
		Kind:    KindInvalidInput,
		Code:    ExitInvalid,
		Message: message,
		Err:     err,
	}
}

// ExitCode maps an error returned by a utility to its process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Code
	}
	return ExitInvalid
}

// ErrorKindOf returns the classification of err, or "" when unclassified
func ErrorKindOf(err error) ErrorKind {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Kind
	}
	return ""
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
