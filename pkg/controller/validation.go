package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// Validator is implemented by request DTOs with their own validation logic.
type Validator interface {
	Validate() error
}

// BindJSON decodes the request body into dto and runs its Validate method.
// Failures are returned as validation AppErrors.
func BindJSON(c *gin.Context, dto interface{}) error {
	if err := c.ShouldBindJSON(dto); err != nil {
		return NewValidationError("request body is not valid JSON", map[string]interface{}{"cause": err.Error()})
	}
	return ValidateDTO(dto)
}

// ValidateDTO calls Validate on DTOs implementing Validator.
func ValidateDTO(dto interface{}) error {
	if dto == nil {
		return NewValidationError("request body is required", nil)
	}
	validator, ok := dto.(Validator)
	if !ok {
		return nil
	}
	if err := validator.Validate(); err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return err
		}
		appErr = NewValidationError(err.Error(), nil)
		appErr.Err = err
		return appErr
	}
	return nil
}
