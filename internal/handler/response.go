package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/ed-intake/pkg/errors"
	"github.com/jwalitptl/ed-intake/pkg/logger"
)

// ErrorResponse is the error body every endpoint answers with.
type ErrorResponse struct {
	Message string       `json:"mensaje"`
	Status  int          `json:"status"`
	Errors  []FieldIssue `json:"errors,omitempty"`
}

// FieldIssue names one rejected request field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewErrorResponse(status int, message string) *ErrorResponse {
	return &ErrorResponse{Message: message, Status: status}
}

// RespondError writes err with the status its kind implies. Errors without
// a kind are logged and reported as internal failures.
func RespondError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		logger.FromContext(c.Request.Context()).Error(err, "unhandled request error",
			"method", c.Request.Method,
			"route", c.FullPath(),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError,
			NewErrorResponse(http.StatusInternalServerError, "Error interno del servidor"))
		return
	}

	status := appErr.Status
	if status == 0 {
		switch appErr.Kind {
		case errors.KindValidation:
			status = http.StatusBadRequest
		case errors.KindNotFound:
			status = http.StatusNotFound
		default:
			status = http.StatusInternalServerError
		}
	}

	body := NewErrorResponse(status, appErr.Message)
	if len(appErr.Fields) == 1 {
		body.Message = appErr.Fields[0].Message
	}
	for _, f := range appErr.Fields {
		body.Errors = append(body.Errors, FieldIssue{Field: f.Field, Message: f.Message})
	}
	c.AbortWithStatusJSON(status, body)
}
