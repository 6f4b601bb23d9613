package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), ErrorHandler())
	r.GET("/falla", func(c *gin.Context) { _ = c.Error(errors.New("pq: connection refused")) })
	r.GET("/escrito", func(c *gin.Context) {
		c.Status(http.StatusConflict)
		c.Writer.WriteHeaderNow()
		_ = c.Error(errors.New("late"))
	})
	r.GET("/panico", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/falla", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Error interno del servidor"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/escrito", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panico", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestLimitadorVentanas(t *testing.T) {
	l := nuevoLimitador("prueba")
	ok, _ := l.permitir("a", 1, time.Minute)
	assert.True(t, ok)
	ok, _ = l.permitir("a", 1, time.Minute)
	assert.False(t, ok)

	ok, _ = l.permitir("b", 1, time.Nanosecond)
	assert.True(t, ok)
	purgadas, quedan := l.purgar(time.Now().Add(time.Second))
	assert.Equal(t, 1, purgadas)
	assert.Equal(t, 1, quedan)
}
