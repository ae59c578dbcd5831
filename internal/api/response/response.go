package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
}

// Meta contains pagination metadata
type Meta struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Success returns a successful response with data
func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// SuccessWithMessage returns a successful response with a message
func SuccessWithMessage(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// Created returns a 201 Created response
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// NoContent returns a 204 No Content response
func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Paginated returns a paginated response
func Paginated(c echo.Context, data interface{}, total int64, limit, offset int) error {
	return c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    data,
		Meta: Meta{
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

// RetryAfterSeconds is advertised on responses to exhausted transient failures
const RetryAfterSeconds = "1"

// Error returns an error response with appropriate status code.
// Internal errors are reported without their cause.
func Error(c echo.Context, err error) error {
	code := apperrors.GetErrorCode(err)
	status := getHTTPStatus(code)

	message := err.Error()
	switch code {
	case apperrors.CodeInternalError:
		message = apperrors.ErrInternal.Error()
	case apperrors.CodeTransient:
		c.Response().Header().Set("Retry-After", RetryAfterSeconds)
	}

	return c.JSON(status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// BadRequest returns a 400 Bad Request response
func BadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeInvalidInput,
	})
}

// statusByCode maps error codes to HTTP status codes; unknown codes are 500
var statusByCode = map[string]int{
	apperrors.CodeNotFound:          http.StatusNotFound,
	apperrors.CodeDuplicateEntry:    http.StatusConflict,
	apperrors.CodeInvalidInput:      http.StatusBadRequest,
	apperrors.CodeRuleTargetMissing: http.StatusConflict,
	apperrors.CodeIntegrity:         http.StatusConflict,
	apperrors.CodeTransient:         http.StatusServiceUnavailable,
	apperrors.CodeUnauthorized:      http.StatusUnauthorized,
	apperrors.CodeForbidden:         http.StatusForbidden,
}

func getHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
