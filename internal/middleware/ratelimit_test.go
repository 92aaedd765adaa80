package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/askbase/askbase/internal/ratelimit"
)

func limitedContext(userID string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/api/v1/ask", nil)
	if userID != "" {
		c.Set(ContextUserIDKey, userID)
	}
	return c
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.New(ratelimit.Config{
		Window:  time.Minute,
		Actions: map[string]int{"ask": 2},
	})
	handle := RateLimit(limiter, "ask")

	for i := 0; i < 2; i++ {
		c := limitedContext("u1")
		handle(c)
		require.False(t, c.IsAborted())
	}
	c := limitedContext("u1")
	handle(c)
	require.True(t, c.IsAborted())

	other := limitedContext("u2")
	handle(other)
	require.False(t, other.IsAborted())
}

func TestRateLimit_MissingUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.New(ratelimit.Config{
		Window:  time.Minute,
		Actions: map[string]int{"ask": 2},
	})
	c := limitedContext("")
	RateLimit(limiter, "ask")(c)
	require.True(t, c.IsAborted())
}

func TestRateLimit_UnknownActionAborts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.New(ratelimit.Config{
		Window:  time.Minute,
		Actions: map[string]int{"ask": 2},
	})
	c := limitedContext("u1")
	RateLimit(limiter, "retrain")(c)
	require.True(t, c.IsAborted())
}
