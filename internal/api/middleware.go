package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rongwang/xmlbank/internal/models"
	"github.com/rongwang/xmlbank/internal/service"
)

// SessionMiddleware returns a Gin middleware that only lets logged-in users through
func SessionMiddleware(svc service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.CurrentSession(c.Request.Context())
		if errors.Is(err, service.ErrNotLoggedIn) {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    "UNAUTHORIZED",
				Message: "Please log in first",
			})
			c.Abort()
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Status:  "error",
				Code:    "INTERNAL_ERROR",
				Message: err.Error(),
			})
			c.Abort()
			return
		}

		// Set the session in the context
		c.Set("session", session)
		c.Next()
	}
}
