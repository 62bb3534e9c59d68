package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type TimeoutConfig struct {
	Duration time.Duration
	// Routes overrides Duration per route pattern, e.g. case analysis,
	// which waits on a slow model.
	Routes map[string]time.Duration
}

func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{Duration: 30 * time.Second}
}

func (t TimeoutConfig) forRoute(route string) time.Duration {
	if d, ok := t.Routes[route]; ok && d > 0 {
		return d
	}
	if t.Duration > 0 {
		return t.Duration
	}
	return DefaultTimeoutConfig().Duration
}

// Timeout bounds the request context. Backend calls observe the deadline;
// a handler that ran out of time without answering gets a 504.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), config.forRoute(c.FullPath()))
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !c.Writer.Written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			httputil.RespondWithError(c, http.StatusGatewayTimeout, "The hospital service took too long to respond")
		}
	}
}
