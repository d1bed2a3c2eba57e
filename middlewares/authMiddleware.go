package middlewares

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wevois/vm_backend/utils"
)

// AuthMiddleware checks the static API token. When SYNC_API_TOKEN is unset
// the service runs open, which is how the internal deployments behind the
// load balancer are configured.
func AuthMiddleware() gin.HandlerFunc {
	expected := strings.TrimSpace(os.Getenv("SYNC_API_TOKEN"))
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}
		token := strings.TrimSpace(c.GetHeader("token"))
		if token == "" || token != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Request = c.Request.WithContext(utils.SetTokenInContext(c.Request.Context(), token))
		c.Next()
	}
}
