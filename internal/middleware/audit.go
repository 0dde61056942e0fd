package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/internal/models"
)

const maxUserAgentLength = 512

// RequestMeta returns the caller details recorded with audit entries.
func RequestMeta(c *gin.Context) models.RequestMeta {
	agent := c.GetHeader("User-Agent")
	if len(agent) > maxUserAgentLength {
		agent = agent[:maxUserAgentLength]
	}
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: agent}
}
