package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline failure kinds.
var (
	ErrConversion      = errors.New("page conversion failed")
	ErrModelCall       = errors.New("model call failed")
	ErrMalformedOutput = errors.New("malformed model output")
	ErrMergeField      = errors.New("merge field error")
	ErrPersistence     = errors.New("persistence failed")
	ErrExtraction      = errors.New("extraction failed")
)

// Error codes carried by AppError.
const (
	CodeConfig          = "CONFIG_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeConversion      = "CONVERSION_FAILURE"
	CodeModelCall       = "MODEL_CALL_FAILURE"
	CodeMalformedOutput = "MALFORMED_OUTPUT"
	CodeMergeField      = "MERGE_FIELD_ERROR"
	CodePersistence     = "PERSISTENCE_FAILURE"
	CodeExtraction      = "EXTRACTION_FAILED"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ConversionError reports that a source document could not be turned into page images.
func ConversionError(message string, cause error) *AppError {
	return NewAppError(CodeConversion, message, errors.Join(ErrConversion, cause))
}

// ModelCallError reports a failed round-trip to the vision or language model.
func ModelCallError(message string, cause error) *AppError {
	return NewAppError(CodeModelCall, message, errors.Join(ErrModelCall, cause))
}

// PersistenceError reports a record-store write failure after a successful extraction.
func PersistenceError(message string, cause error) *AppError {
	return NewAppError(CodePersistence, message, errors.Join(ErrPersistence, cause))
}

// ExtractionError reports that no page produced a usable result.
func ExtractionError(message string, cause error) *AppError {
	return NewAppError(CodeExtraction, message, errors.Join(ErrExtraction, cause))
}

// MergeFieldError reports a per-field shape mismatch during merge.
func MergeFieldError(field string, cause error) *AppError {
	return NewAppError(CodeMergeField, "field "+field, errors.Join(ErrMergeField, cause))
}

// UserMessage is the single explanatory line shown to an end user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPersistence):
		return "the document was processed but the result could not be saved"
	case errors.Is(err, ErrConversion):
		return "the document could not be converted into page images"
	case errors.Is(err, ErrExtraction):
		return "no data could be extracted from the document"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrNotFound):
		return "the requested record does not exist"
	default:
		return "an unexpected error occurred"
	}
}

// ToStatus maps an application error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	msg := UserMessage(err)
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(msg)
	case errors.Is(err, ErrNotFound):
		return NotFoundError(msg)
	case errors.Is(err, ErrConversion):
		return status.Error(codes.FailedPrecondition, msg)
	case errors.Is(err, ErrExtraction):
		return status.Error(codes.Unavailable, msg)
	default:
		return InternalError(msg)
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}
