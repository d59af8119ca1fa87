package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the external error envelope. The code string is the whole
// signal: authentication failures deliberately carry no detail about which
// check failed.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AppError maps an internal failure to its external HTTP shape.
type AppError struct {
	HTTPStatus int
	Code       string // machine-readable, e.g. "invalid_token"
	Message    string // optional human detail, safe to expose
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func NewBadRequest(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Code: code, Message: msg}
}

func NewUnauthorized(code string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Code: code}
}

func NewForbidden(code string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Code: code}
}

func NewNotFound(code string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Code: code}
}

func NewConflict(code, msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusConflict, Code: code, Message: msg}
}

// OK sends a 200 with the given payload.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 with the given payload.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error sends an error response. *AppError values keep their status and
// code; anything else becomes an opaque 500 — internal detail never reaches
// the client.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorBody{Error: appErr.Code, Message: appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal_error"})
}

func BadRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: code, Message: msg})
}

func Unauthorized(c *gin.Context, code string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: code})
}

func Forbidden(c *gin.Context, code string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: code})
}
