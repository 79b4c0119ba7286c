package http

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tazhibayda/profile-service/internal/metrics"
)

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Tracing())
	r.Use(metrics.Middleware())
	if len(h.CORSOrigins) > 0 {
		r.Use(CORS(h.CORSOrigins))
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", metrics.Handler())
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if h.Keys != nil {
		r.GET("/.well-known/jwks.json", h.JWKS)
	}

	perMin := h.RateLimitPerMin
	if perMin <= 0 {
		perMin = 30
	}
	rl := NewRateLimiter(perMin, time.Minute)
	cookieName := h.Sessions.CookieName()

	api := r.Group("/api")
	{
		api.PATCH("/user", RequireSession(h.Sessions), RateLimit(rl, cookieName), h.UpdateProfile)
		api.GET("/user/me", h.Me)
		api.GET("/user/metadata", RequireSession(h.Sessions), h.Metadata)
		api.GET("/auth/refresh", h.RefreshSession)
		api.POST("/auth/logout", h.Logout)
		if h.DevLogin {
			api.POST("/auth/dev-session", h.DevSession) // только для локальной разработки
		}
	}
	return r
}
