package router

import (
	"time"

	"cobranzas/internal/config"
	"cobranzas/internal/handler"
	"cobranzas/internal/infra"
	"cobranzas/internal/middleware"
	"cobranzas/internal/repository"
	"cobranzas/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Dependencias are the pieces built by the composition root.
type Dependencias struct {
	Store   repository.Store
	StoreCB *infra.CircuitBreaker // optional, reported by /health
	Cola    service.Encolador     // nil writes cash events inline
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Store ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Dependencias) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Services ─────────────────────────────────────────────────────────────
	opts := service.OpcionesDeConfig(cfg)
	vistas := handler.VistasServices{
		Caja:      service.NewCajaService(deps.Store, opts),
		Cierres:   service.NewCierresService(deps.Store, opts),
		Rutas:     service.NewRutasService(deps.Store, opts),
		Alertas:   service.NewAlertasService(deps.Store, opts),
		Auditoria: service.NewAuditoriaService(deps.Store, opts),
		Morosidad: service.NewMorosidadService(deps.Store, opts),
	}
	ingestaSvc := service.NewIngestaService(deps.Store, deps.Cola)

	// ── Handlers ─────────────────────────────────────────────────────────────
	vistasH := handler.NewVistasHandler(vistas, time.Duration(cfg.SnapshotTimeoutSeconds)*time.Second, opts.Zona)
	ingestaH := handler.NewIngestaHandler(ingestaSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	if db != nil && rdb != nil {
		r.GET("/health", handler.Health(db, rdb, deps.StoreCB))
	}

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		// Roles: administrador sees every collector; cobrador is pinned to
		// its own actor by the handlers.
		lectura := v1.Group("", middleware.RequireRole(middleware.RolAdministrador, middleware.RolCobrador))
		{
			lectura.GET("/caja", vistasH.Caja)
			lectura.GET("/caja/stream", vistasH.CajaStream)
			lectura.GET("/cierres", vistasH.Cierres)
			lectura.GET("/cierres/stream", vistasH.CierresStream)
			lectura.GET("/cierres/pdf", vistasH.CierresPDF)
			lectura.GET("/alertas", vistasH.Alertas)
			lectura.GET("/alertas/stream", vistasH.AlertasStream)
			lectura.GET("/morosidad", vistasH.Morosidad)
			lectura.GET("/morosidad/stream", vistasH.MorosidadStream)
		}

		admin := v1.Group("", middleware.RequireRole(middleware.RolAdministrador))
		{
			admin.GET("/rutas", vistasH.Rutas)
			admin.GET("/rutas/stream", vistasH.RutasStream)
			admin.GET("/auditoria", vistasH.Auditoria)
			admin.GET("/auditoria/stream", vistasH.AuditoriaStream)
		}

		ingesta := v1.Group("",
			middleware.RequireRole(middleware.RolAdministrador, middleware.RolCobrador),
			middleware.IngestaRateLimiter(cfg.IngestaRateLimit),
		)
		{
			ingesta.POST("/movimientos", ingestaH.RegistrarMovimiento)
			ingesta.POST("/cierres", ingestaH.RegistrarCierre)
		}
	}

	// Swagger UI only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
