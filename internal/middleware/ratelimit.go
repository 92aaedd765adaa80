package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/askbase/askbase/internal/pkg/errcode"
	"github.com/askbase/askbase/internal/pkg/response"
	"github.com/askbase/askbase/internal/ratelimit"
)

// RateLimit gates one named action behind the shared sliding-window
// limiter. It must run after JWTAuth so the user id is present.
func RateLimit(limiter *ratelimit.Limiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := ""
		if v, ok := c.Get(ContextUserIDKey); ok {
			userID, _ = v.(string)
		}
		if userID == "" {
			response.Error(c, errcode.ErrUnauthorized, "unauthorized")
			c.Abort()
			return
		}
		ok, err := limiter.Check(userID, action)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Error("rate limit misconfigured",
				zap.String("action", action), zap.Error(err))
			response.Error(c, errcode.ErrInternal, "internal error")
			c.Abort()
			return
		}
		if !ok {
			logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
				zap.String("user_id", userID),
				zap.String("action", action),
			)
			response.Error(c, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}
