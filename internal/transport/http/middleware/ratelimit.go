package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/ratelimit"
	"github.com/SQ-Kust408/poet-1v1-chat-room/internal/transport/http/response"
)

// RateLimit gates every request by client IP before any other logic runs.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			response.Error(c, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests, please retry later")
			c.Abort()
			return
		}
		c.Next()
	}
}
