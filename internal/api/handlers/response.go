package handlers

import (
	"net/http"
	"strconv"
	"time"

	"example.com/granary/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Response is the uniform envelope of every API response
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func respondPage(c *gin.Context, message string, data interface{}, pagination services.Pagination) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      pagination,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// respondError maps service error categories onto HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}

	c.JSON(status, Response{
		Success:   false,
		Message:   "request failed",
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{
		Success:   false,
		Message:   "invalid request",
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// idParam parses the :id path parameter
func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid id parameter")
	}
	return uint(id), nil
}

// queryUint parses an optional numeric query parameter, 0 when absent
func queryUint(c *gin.Context, name string) uint {
	value, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(value)
}

// queryInt parses an optional numeric query parameter with a default
func queryInt(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return value
}

// queryFloat parses an optional decimal query parameter, 0 when absent
func queryFloat(c *gin.Context, name string) float64 {
	value, err := strconv.ParseFloat(c.Query(name), 64)
	if err != nil {
		return 0
	}
	return value
}

// queryTime parses an optional RFC 3339 or date-only query parameter
func queryTime(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}
