package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response defines the standard API response envelope.
type Response struct {
	Success  bool        `json:"success"`
	Code     int         `json:"code"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Error    *ErrorInfo  `json:"error,omitempty"`
	Meta     Meta        `json:"meta"`
}

// ErrorInfo provides details for error responses.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains request-scoped metadata.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// Success writes a success response with the standard envelope.
func Success(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Success: true,
		Code:    code,
		Message: message,
		Data:    data,
		Meta:    newMeta(c),
	})
}

// SuccessWithWarnings writes a success response that also carries persistence
// warnings. A nil warn behaves like Success.
func SuccessWithWarnings(c *gin.Context, code int, message string, data interface{}, warn error) {
	resp := Response{
		Success: true,
		Code:    code,
		Message: message,
		Data:    data,
		Meta:    newMeta(c),
	}
	if warn != nil {
		resp.Warnings = flatten(warn)
	}
	c.JSON(code, resp)
}

// Error writes an error response with provided API error code and message.
func Error(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, Response{
		Success: false,
		Code:    code,
		Message: message,
		Error: &ErrorInfo{
			Code:    errCode,
			Message: message,
		},
		Meta: newMeta(c),
	})
}

// ErrorFrom maps a service error onto the envelope. Persistence warnings are not
// errors and must be handled by the caller before reaching here.
func ErrorFrom(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		Error(c, http.StatusBadRequest, ErrEmptyCart.Error(), err.Error())
	case errors.Is(err, ErrValidation):
		Error(c, http.StatusBadRequest, ErrValidation.Error(), err.Error())
	case errors.Is(err, ErrNotFound):
		Error(c, http.StatusNotFound, ErrNotFound.Error(), err.Error())
	case errors.Is(err, ErrNotOwned):
		Error(c, http.StatusForbidden, ErrNotOwned.Error(), err.Error())
	case errors.Is(err, ErrDownloadLimit):
		Error(c, http.StatusForbidden, ErrDownloadLimit.Error(), err.Error())
	case errors.Is(err, ErrInvalidStep):
		Error(c, http.StatusConflict, ErrInvalidStep.Error(), err.Error())
	default:
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal error")
	}
}

// Respond writes the outcome of a service call: success, success with
// persistence warnings, or the mapped error.
func Respond(c *gin.Context, code int, message string, data interface{}, err error) {
	switch {
	case err == nil:
		Success(c, code, message, data)
	case IsWarning(err):
		SuccessWithWarnings(c, code, message, data, err)
	default:
		ErrorFrom(c, err)
	}
}

func newMeta(c *gin.Context) Meta {
	return Meta{
		RequestID: getRequestID(c),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func flatten(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if _, single := err.(*PersistenceWarning); !single {
			var out []string
			for _, e := range joined.Unwrap() {
				out = append(out, flatten(e)...)
			}
			return out
		}
	}
	return []string{err.Error()}
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return uuid.New().String()[:8]
}
