package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/pkg/backend"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// QRHandler serves prescription QR images outside the pharmacy role gate.
type QRHandler interface {
	Handler
	RegisterQRRoutes(*gin.RouterGroup)
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	healthH      Handler
	appointmentH Handler
	chatbotH     Handler
	pharmacyH    QRHandler
	auditH       Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      middleware.RateLimiterConfig
	RateLimitOn    bool
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	AnalyzeTimeout time.Duration
	SizeLimit      middleware.SizeLimitConfig
	MetricsPrefix  string
	Registerer     prometheus.Registerer
	Logger         zerolog.Logger
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH Handler,
	appointmentH Handler,
	chatbotH Handler,
	pharmacyH QRHandler,
	auditH Handler,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()

	r := &Router{
		engine:       engine,
		auth:         auth,
		healthH:      healthH,
		appointmentH: appointmentH,
		chatbotH:     chatbotH,
		pharmacyH:    pharmacyH,
		auditH:       auditH,
	}

	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	prefix := config.MetricsPrefix
	if prefix == "" {
		prefix = "portal_http"
	}
	timeouts := middleware.TimeoutConfig{Duration: config.RequestTimeout}
	if config.AnalyzeTimeout > 0 {
		timeouts.Routes = map[string]time.Duration{
			"/api/v1/portal/chatbot/:conversation/analyze": config.AnalyzeTimeout,
		}
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(config.Logger),
		middleware.Recovery(),
		middleware.Logger(config.Logger),
		middleware.ErrorHandler(),
		middleware.NewHTTPMetrics(prefix, reg).Middleware(),
		middleware.Timeout(timeouts),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(config.SizeLimit),
	)

	if config.RateLimitOn {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)

	portal := api.Group("/portal")
	portal.Use(r.auth.Authenticate())
	r.setupPortalRoutes(portal)
}

func (r *Router) setupPortalRoutes(rg *gin.RouterGroup) {
	r.appointmentH.RegisterRoutes(rg)
	r.pharmacyH.RegisterQRRoutes(rg)

	doctors := rg.Group("")
	doctors.Use(r.auth.RequireRole(backend.RoleDoctor, backend.RoleAdmin))
	r.chatbotH.RegisterRoutes(doctors)

	pharmacy := rg.Group("")
	pharmacy.Use(r.auth.RequireRole(backend.RolePharmacist, backend.RoleAdmin))
	r.pharmacyH.RegisterRoutes(pharmacy)

	admin := rg.Group("/admin")
	admin.Use(r.auth.RequireRole(backend.RoleAdmin))
	r.auditH.RegisterRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
