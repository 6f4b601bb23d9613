package middleware

import (
	"net/http"
	"time"

	"cobranzas/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// conPeticion adds request id, and tenant once JWTAuth ran, to a log event.
func conPeticion(e *zerolog.Event, c *gin.Context) *zerolog.Event {
	e = e.Str("request_id", c.GetString(RequestIDKey))
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*JWTClaims); ok {
			e = e.Str("tenant_id", claims.TenantID).Str("rol", claims.Rol)
		}
	}
	return e
}

// ErrorHandler turns errors attached with c.Error into a generic 500; the
// cause only goes to the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		conPeticion(log.Error(), c).
			Str("path", c.FullPath()).
			Str("method", c.Request.Method).
			Err(err.Err).
			Msg("unhandled error")
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
		}
	}
}

// Recovery converts panics into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				conPeticion(log.Error(), c).
					Str("path", c.FullPath()).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request. Streams log once, when the client
// leaves.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		conPeticion(log.Info(), c).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
