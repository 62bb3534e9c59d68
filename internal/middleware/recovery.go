package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/pkg/httputil"
)

// Recovery turns a handler panic into a 500 envelope and logs it with the
// route and caller role.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			event := RequestLogger(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", c.Request.Method).
				Str("route", c.FullPath())
			if sess, err := SessionFrom(c); err == nil {
				event = event.Str("role", sess.Role)
			}
			event.Msg("handler panicked")

			httputil.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
		}()
		c.Next()
	}
}
