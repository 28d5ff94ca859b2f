package middleware

import "github.com/gin-gonic/gin"

const clientIDKey = "client_id"

// GetClientID returns the authenticated client, or "" when auth is disabled.
func GetClientID(c *gin.Context) string {
	clientID, exists := c.Get(clientIDKey)
	if !exists {
		return ""
	}
	return clientID.(string)
}
