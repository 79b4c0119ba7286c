package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tazhibayda/profile-service/internal/identity"
	"github.com/tazhibayda/profile-service/internal/profile"
	"github.com/tazhibayda/profile-service/internal/repo"
	"github.com/tazhibayda/profile-service/internal/security"
)

type Handler struct {
	Profiles        *profile.Pipeline
	Sessions        *identity.SessionAdapter
	Store           *repo.Store // nil with the memory metadata backend
	Redis           *repo.Redis // nil with cookie sessions
	Keys            *security.KeyManager
	RateLimitPerMin int
	CORSOrigins     []string
	DevLogin        bool
}

func NewHandler(profiles *profile.Pipeline, sessions *identity.SessionAdapter, store *repo.Store, rds *repo.Redis, rlPerMin int) *Handler {
	return &Handler{
		Profiles:        profiles,
		Sessions:        sessions,
		Store:           store,
		Redis:           rds,
		RateLimitPerMin: rlPerMin,
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Healthz godoc
// @Summary Liveness and dependency check
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "mongo: " + err.Error()})
			return
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "redis: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// JWKS godoc
// @Summary Public keys that verify session cookies
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /.well-known/jwks.json [get]
func (h *Handler) JWKS(c *gin.Context) {
	c.JSON(http.StatusOK, h.Keys.JWKS())
}

type devSessionReq struct {
	Sub     string `json:"sub" binding:"required"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}
