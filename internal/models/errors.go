package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorClass is the numeric failure class the transport layer maps to a status code.
type ErrorClass int

const (
	ClassInternal ErrorClass = iota
	ClassBadRequest
	ClassUnauthorized
	ClassForbidden
	ClassNotFound
)

// Error codes carried by AppError.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidDescriptor = "INVALID_DESCRIPTOR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeOperationFailed   = "OPERATION_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Class   ErrorClass
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Class:   ClassNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Class:   ClassBadRequest,
		Message: message,
	}
}

// NewInvalidDescriptorError reports malformed pagination in a query descriptor.
func NewInvalidDescriptorError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidDescriptor,
		Class:   ClassBadRequest,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Class:   ClassUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Class:   ClassForbidden,
		Message: message,
	}
}

// NewOperationFailedError wraps a write the store rejected.
func NewOperationFailedError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeOperationFailed,
		Class:   ClassInternal,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Class:   ClassInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// ClassOf returns the class of err, ClassInternal for anything that is not an AppError.
func ClassOf(err error) ErrorClass {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Class
	}
	return ClassInternal
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// StatusFor maps an error class onto an HTTP status.
func StatusFor(err error) int {
	switch ClassOf(err) {
	case ClassBadRequest:
		return fiber.StatusBadRequest
	case ClassUnauthorized:
		return fiber.StatusUnauthorized
	case ClassForbidden:
		return fiber.StatusForbidden
	case ClassNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Class != ClassInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
