package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/observability/logger"
)

// Error codes carried in the response envelope.
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
)

const internalMessage = "an unexpected error occurred"

// AppError is the single application error contract returned to HTTP clients.
type AppError struct {
	Status     int
	Code       string
	Message    string
	Details    map[string]interface{}
	RetryAfter time.Duration
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// ErrorBody is the inner object of the error envelope.
type ErrorBody struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"requestId,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse represents the consistent error response format.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: message, Details: details}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(message string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

// NewUnauthorizedError creates a new unauthorized error.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// NewForbiddenError creates a new forbidden error.
func NewForbiddenError(message string) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// NewRateLimitedError creates a 429 error; a positive retryAfter is sent as Retry-After.
func NewRateLimitedError(message string, retryAfter time.Duration) *AppError {
	return &AppError{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: message, RetryAfter: retryAfter}
}

// NewInternalError creates a new internal error with optional cause.
func NewInternalError(cause error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: internalMessage, Err: cause}
}

// MapError maps an error to its HTTP status and envelope. Errors that are not
// an *AppError become an opaque 500.
func MapError(err error, requestID string) (int, ErrorResponse) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
			Code:      CodeInternal,
			Message:   internalMessage,
			RequestID: requestID,
		}}
	}

	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	message := appErr.Message
	if status == http.StatusInternalServerError || message == "" {
		message = internalMessage
	}
	code := appErr.Code
	if code == "" {
		code = CodeInternal
	}
	return status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   appErr.Details,
	}}
}

// Error writes the error envelope and aborts the handler chain. 5xx causes
// are logged with the request scoped logger.
func Error(c *gin.Context, err error) {
	ctx := c.Request.Context()
	status, body := MapError(err, logger.RequestIDFromContext(ctx))

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(appErr.RetryAfter)))
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if log, ok := c.Get(LoggerKey); ok {
			if l, ok := log.(logger.Logger); ok {
				l.WithContext(ctx).Error("request failed", "error", err, "path", c.FullPath())
			}
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// LoggerKey is the gin context key under which the API stores its logger.
const LoggerKey = "learnhub.logger"

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
