package middleware

import "github.com/gin-gonic/gin"

// abortWithError writes the same error envelope the handlers use. The handler
// package depends on this one, so the shape is repeated here.
func abortWithError(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
