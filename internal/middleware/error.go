package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/care-portal/pkg/httputil"
)

// ErrorHandler logs errors attached with c.Error and answers with the last
// one when the handler wrote nothing. 4xx are logged as warnings.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		last := c.Errors.Last()
		status := httputil.StatusOf(last.Err)
		log := RequestLogger(c)
		for _, e := range c.Errors {
			var event *zerolog.Event
			if httputil.StatusOf(e.Err) < http.StatusInternalServerError {
				event = log.Warn()
			} else {
				event = log.Error()
			}
			event.Err(e.Err).
				Str("route", c.FullPath()).
				Str("method", c.Request.Method).
				Interface("meta", e.Meta).
				Msg("request error")
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(status, httputil.NewErrorResponse(last.Error()))
	}
}
