package middleware

import (
	"github.com/gin-gonic/gin"
	ierr "github.com/renewly/renewly/internal/errors"
)

// ErrorHandler converts errors attached to the gin context into the standard
// JSON error response. It must run before the handlers, so register it first.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := ierr.HTTPStatusFromErr(err)
		c.JSON(status, ierr.NewErrorResponse(err))
	}
}
