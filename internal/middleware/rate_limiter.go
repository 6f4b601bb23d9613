package middleware

import (
	"net/http"
	"sync"
	"time"

	"cobranzas/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ── Fixed windows ────────────────────────────────────────────────────────────

type ventana struct {
	count int
	fin   time.Time
	mu    sync.Mutex
}

// limitador counts requests per key in fixed windows of length dur.
type limitador struct {
	nombre string
	mu     sync.Mutex
	claves map[string]*ventana
}

func nuevoLimitador(nombre string) *limitador {
	return &limitador{nombre: nombre, claves: make(map[string]*ventana)}
}

// permitir counts one request for clave and reports whether it is within
// limit, plus the end of the current window.
func (l *limitador) permitir(clave string, limit int, dur time.Duration) (bool, time.Time) {
	l.mu.Lock()
	v, ok := l.claves[clave]
	if !ok {
		v = &ventana{}
		l.claves[clave] = v
	}
	l.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	now := time.Now()
	if now.After(v.fin) {
		v.count = 0
		v.fin = now.Add(dur)
	}
	v.count++
	return v.count <= limit, v.fin
}

// purgar drops windows that ended before now and returns how many remain.
func (l *limitador) purgar(now time.Time) (purgadas, quedan int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.claves {
		v.mu.Lock()
		if now.After(v.fin) {
			delete(l.claves, k)
			purgadas++
		}
		v.mu.Unlock()
	}
	return purgadas, len(l.claves)
}

var (
	ingestaLimites = nuevoLimitador("ingesta")
	apiLimites     = nuevoLimitador("api")
)

// ── Ingestion ────────────────────────────────────────────────────────────────

// IngestaRateLimiter allows limit writes per minute per tenant. Mount it after
// JWTAuth; without claims the client IP is the key.
func IngestaRateLimiter(limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		clave := c.ClientIP()
		if v, ok := c.Get(ClaimsKey); ok {
			if claims, ok := v.(*JWTClaims); ok {
				clave = "tenant:" + claims.TenantID
			}
		}
		if ok, _ := ingestaLimites.permitir(clave, limit, time.Minute); !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiados movimientos. Intente en 1 minuto."))
			return
		}
		c.Next()
	}
}

// ── Per IP ───────────────────────────────────────────────────────────────────

// RateLimiter allows limit requests per window per client IP, streams
// included (one count per upgrade).
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, fin := apiLimites.permitir(c.ClientIP(), limit, window)
		if !ok {
			c.Header("Retry-After", fin.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

// ── Purge ────────────────────────────────────────────────────────────────────

const purgeInterval = 5 * time.Minute

func init() {
	go purgeExpiredEntries()
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for now := range ticker.C {
		for _, l := range []*limitador{ingestaLimites, apiLimites} {
			if purgadas, quedan := l.purgar(now); purgadas > 0 {
				log.Debug().
					Str("limitador", l.nombre).
					Int("purgadas", purgadas).
					Int("quedan", quedan).
					Msg("rate_limiter: expired windows purged")
			}
		}
	}
}
