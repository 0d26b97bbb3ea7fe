package middleware

import (
	"net/http"

	"legaljudge-backend/models"
	"legaljudge-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery middleware turns a panic into the structured error body
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)

				logger.Error(c.Request.Context(), "panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
					Status:    models.ResponseStatusError,
					Error:     "Internal server error",
					Code:      "INTERNAL_ERROR",
					RequestID: requestID,
				})
			}
		}()

		c.Next()
	}
}
