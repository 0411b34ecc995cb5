package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CodeInvalidInput is the response code for malformed or invalid request bodies.
const CodeInvalidInput = "INVALID_INPUT"

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			messages = append(messages, e.Field()+" failed on '"+e.Tag()+"'")
		}
		return strings.Join(messages, ", ")
	}
	return err.Error()
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a 400 response coded CodeInvalidInput and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		ErrorWithCode(c, http.StatusBadRequest, CodeInvalidInput, "Invalid request payload: "+err.Error())
		return false
	}
	if err := Validate(obj); err != nil {
		ErrorWithCode(c, http.StatusBadRequest, CodeInvalidInput, "Validation failed: "+FormatValidationError(err))
		return false
	}
	return true
}
