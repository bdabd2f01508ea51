package api

import (
	"github.com/gin-gonic/gin"
)

// errorResponse writes a uniform error body.
func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": message,
	})
}

// notFoundResponse writes a 404 for a missing resource.
func notFoundResponse(c *gin.Context, resource string) {
	c.JSON(404, gin.H{
		"error": resource + " not found",
	})
}
