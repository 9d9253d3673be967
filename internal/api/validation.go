package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notblank", validators.NotBlank)
	}
}

// ValidationError describes one rejected field of a request body.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationErrors flattens validator errors into ValidationError values.
// Errors that did not come from the validator yield nil.
func ValidationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: errorMessage(fe),
		})
	}
	return out
}

func errorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return err.Field() + " must be a valid email address"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "notblank":
		return err.Field() + " must not be blank"
	case "hexadecimal":
		return err.Field() + " must be hexadecimal"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "ne":
		return err.Field() + " must not be " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}

// RespondBindError answers a failed ShouldBindJSON with a 400, listing
// field-level details when the failure came from validation.
func RespondBindError(c *gin.Context, err error) {
	if details := ValidationErrors(err); len(details) > 0 {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:   "validation failed",
			Details: details,
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}
