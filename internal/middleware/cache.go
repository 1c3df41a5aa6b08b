package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Cache marks GET responses as cacheable for maxAge seconds. Rendered
// rasters are deterministic for fixed query parameters, so browsers may
// reuse them freely.
func Cache(maxAge int) gin.HandlerFunc {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(c *gin.Context) {
		if c.Request.Method == "GET" {
			c.Header("Cache-Control", value)
		}
		c.Next()
	}
}
