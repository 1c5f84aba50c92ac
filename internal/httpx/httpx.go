// Package httpx holds the error mapping and request helpers shared by the API handlers.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/gin-gonic/gin"
)

var (
	// ErrInvalid marks input the caller can fix; mapped to 400.
	ErrInvalid = errors.New("invalid input")
	// ErrState marks an operation not allowed in the record's current state; mapped to 409.
	ErrState = errors.New("invalid state")
	// ErrUnavailable marks a feature whose backing service is not configured; mapped to 503.
	ErrUnavailable = errors.New("service unavailable")
)

// Invalidf builds an ErrInvalid with a message for the client.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Status maps a service error to an HTTP status.
func Status(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict), errors.Is(err, ErrState):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNoTenant):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Abort writes the error response for err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	status := Status(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusInternalServerError:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BindJSON decodes the body into v, writing a 400 on failure.
func BindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// QueryTime parses an RFC3339 query parameter; empty yields the zero time.
func QueryTime(c *gin.Context, name string) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, Invalidf("%s must be RFC3339", name)
	}
	return t, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(c *gin.Context, name string) (*bool, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, Invalidf("%s must be a boolean", name)
	}
	return &b, nil
}

// QueryInt parses an optional integer query parameter, returning def when absent.
func QueryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, Invalidf("%s must be an integer", name)
	}
	return n, nil
}
