package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OutlineCacheFlusher drops every cached course outline.
type OutlineCacheFlusher interface {
	InvalidateCourseOutlines() error
}

func ClearCache(cache OutlineCacheFlusher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cache.InvalidateCourseOutlines(); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "cache cleared"})
	}
}
