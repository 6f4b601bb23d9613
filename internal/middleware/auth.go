package middleware

import (
	"net/http"
	"strings"
	"time"

	"cobranzas/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimsKey = "claims"

	RolAdministrador = "administrador"
	RolCobrador      = "cobrador"
)

// JWTClaims are the custom claims embedded in every access token. Actor is
// the collector id written into the documents (the "admin" field); it
// defaults to the user id.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Actor    string `json:"actor,omitempty"`
	Rol      string `json:"rol"`
	jwt.RegisteredClaims
}

// ActorID is the collector identity of the caller.
func (c *JWTClaims) ActorID() string {
	if c.Actor != "" {
		return c.Actor
	}
	return c.UserID
}

// NewToken signs an HS256 access token.
func NewToken(secret string, claims JWTClaims, duration time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(duration))
	if claims.Subject == "" {
		claims.Subject = claims.UserID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// tokenDe reads the bearer token from the Authorization header. Browsers
// cannot set headers on a WebSocket handshake, so the stream routes also
// accept ?access_token=.
func tokenDe(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if strings.HasSuffix(c.Request.URL.Path, "/stream") {
		return c.Query("access_token")
	}
	return ""
}

// JWTAuth validates the Bearer token on every protected route. Tokens without
// a tenant are rejected: every view is tenant scoped.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := tokenDe(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}
		if claims.TenantID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Token sin tenant"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose JWT role is not in the allowed list.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok || !allowed[claims.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("Permisos insuficientes"))
			return
		}
		c.Next()
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

// CobradorForzado returns the collector filter a caller may use: collectors
// only ever see their own rows, administrators keep what they asked for.
func CobradorForzado(claims *JWTClaims, pedido string) string {
	if claims != nil && claims.Rol == RolCobrador {
		return claims.ActorID()
	}
	return pedido
}
