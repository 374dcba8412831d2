package middleware

import (
	"context"
	"fmt"
	"time"

	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter counts one hit on key within window.
type Limiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) error
}

// RateLimitPolicy bounds requests per client ip and per route.
type RateLimitPolicy struct {
	Window   time.Duration `yaml:"window"`
	IPMax    int           `yaml:"ipMax"`
	RouteMax int           `yaml:"routeMax"`
	// FailOpen lets requests through when the limiter backend is down.
	FailOpen bool `yaml:"failOpen"`
}

// RateLimitMiddleware enforces policy for routeKey. A nil limiter disables it.
func RateLimitMiddleware(limiter Limiter, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if policy.IPMax > 0 {
			key := fmt.Sprintf("judge:rate:ip:%s:%s", c.ClientIP(), routeKey)
			if !allow(c, limiter, key, policy.IPMax, policy) {
				return
			}
		}
		if policy.RouteMax > 0 {
			key := fmt.Sprintf("judge:rate:route:%s", routeKey)
			if !allow(c, limiter, key, policy.RouteMax, policy) {
				return
			}
		}
		c.Next()
	}
}

func allow(c *gin.Context, limiter Limiter, key string, max int, policy RateLimitPolicy) bool {
	err := limiter.Allow(c.Request.Context(), key, max, policy.Window)
	if err == nil {
		return true
	}
	if policy.FailOpen && !appErr.Is(err, appErr.TooManyRequests) {
		logger.Warn(c.Request.Context(), "rate limiter unavailable, letting request through", zap.Error(err))
		return true
	}
	response.AbortWithError(c, err)
	return false
}
