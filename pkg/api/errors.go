package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/controller"
	"github.com/learnhub/learnhub/pkg/instructor"
	"github.com/learnhub/learnhub/pkg/jobs"
	"github.com/learnhub/learnhub/pkg/notification"
	"github.com/learnhub/learnhub/pkg/otp"
	"github.com/learnhub/learnhub/pkg/registration"
)

const (
	codeInvalidCode       = "invalid_code"
	codeExpired           = "registration_expired"
	codeInvalidTransition = "invalid_transition"
	codeUnavailable       = "service_unavailable"
)

// mapError converts domain errors to the HTTP error contract.
func mapError(err error) error {
	var appErr *controller.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var rateErr *otp.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		return controller.NewRateLimitedError(rateErr.Error(), rateErr.Remaining)
	case errors.Is(err, registration.ErrValidation),
		errors.Is(err, instructor.ErrValidation),
		errors.Is(err, notification.ErrValidation),
		errors.Is(err, otp.ErrInvalidArgument),
		errors.Is(err, jobs.ErrInvalidArgument):
		appErr = controller.NewValidationError(err.Error(), nil)
	case errors.Is(err, registration.ErrInvalidCode):
		appErr = &controller.AppError{Status: http.StatusBadRequest, Code: codeInvalidCode, Message: registration.ErrInvalidCode.Error()}
	case errors.Is(err, registration.ErrExpired):
		appErr = &controller.AppError{Status: http.StatusGone, Code: codeExpired, Message: registration.ErrExpired.Error()}
	case errors.Is(err, registration.ErrAlreadyRegistered):
		appErr = controller.NewConflictError(registration.ErrAlreadyRegistered.Error())
	case errors.Is(err, instructor.ErrInvalidTransition):
		appErr = &controller.AppError{Status: http.StatusConflict, Code: codeInvalidTransition, Message: err.Error()}
	case errors.Is(err, instructor.ErrConflict):
		appErr = controller.NewConflictError(instructor.ErrConflict.Error())
	case errors.Is(err, instructor.ErrNotFound):
		appErr = controller.NewNotFoundError(instructor.ErrNotFound.Error())
	case errors.Is(err, notification.ErrNotFound):
		appErr = controller.NewNotFoundError(notification.ErrNotFound.Error())
	case errors.Is(err, jobs.ErrRetryable), errors.Is(err, jobs.ErrClosed):
		appErr = &controller.AppError{Status: http.StatusServiceUnavailable, Code: codeUnavailable, Message: "service temporarily unavailable"}
	default:
		return controller.NewInternalError(err)
	}
	appErr.Err = err
	return appErr
}

func (h *handlers) fail(c *gin.Context, err error) {
	controller.Error(c, mapError(err))
}
