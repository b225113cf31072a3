// Package response writes the JSON envelope shared by every HTTP endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Body{Success: true, Data: data})
}

func failure(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Error: msg})
}

// OK sends 200 with data.
func OK(c *gin.Context, data any) { success(c, http.StatusOK, data) }

// Accepted sends 202 for work handed to the background pipeline.
func Accepted(c *gin.Context, data any) { success(c, http.StatusAccepted, data) }

// BadRequest sends 400.
func BadRequest(c *gin.Context, msg string) { failure(c, http.StatusBadRequest, msg) }

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) { failure(c, http.StatusUnauthorized, msg) }

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) { failure(c, http.StatusForbidden, msg) }

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) { failure(c, http.StatusNotFound, msg) }

// Conflict sends 409.
func Conflict(c *gin.Context, msg string) { failure(c, http.StatusConflict, msg) }

// TooLarge sends 413.
func TooLarge(c *gin.Context, msg string) { failure(c, http.StatusRequestEntityTooLarge, msg) }

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, msg string) { failure(c, http.StatusServiceUnavailable, msg) }

// Internal sends 500.
func Internal(c *gin.Context, msg string) { failure(c, http.StatusInternalServerError, msg) }
