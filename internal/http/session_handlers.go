package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/identity"
	"github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/metrics"
)

// RefreshSession godoc
// @Summary Pull the current identity from the identity provider and rewrite the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/auth/refresh [get]
func (h *Handler) RefreshSession(c *gin.Context) {
	ctx := c.Request.Context()
	id, cookie, err := h.Sessions.RefreshFromUpstream(ctx, c.Request)
	metrics.SessionRefreshes.WithLabelValues(metrics.Outcome(err)).Inc()
	if errors.Is(err, identity.ErrSessionMissing) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}
	if err != nil {
		log.Ctx(ctx, zap.String("request_id", requestID(c))).Error("session refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to refresh user data"})
		return
	}

	// cookie должен уйти именно с этим ответом, до записи тела
	http.SetCookie(c.Writer, cookie)
	c.JSON(http.StatusOK, gin.H{"success": true, "user": id})
}

// Logout godoc
// @Summary Drop the session and clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	cookie, err := h.Sessions.End(c.Request.Context(), c.Request)
	if err != nil {
		log.Ctx(c.Request.Context(), zap.String("request_id", requestID(c))).Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to end session"})
		return
	}
	http.SetCookie(c.Writer, cookie)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DevSession godoc
// @Summary Open a session without the identity provider (dev only)
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body devSessionReq true "identity"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/auth/dev-session [post]
func (h *Handler) DevSession(c *gin.Context) {
	var in devSessionReq
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	id := domain.Identity{Subject: in.Sub, Name: in.Name, Email: in.Email, Picture: in.Picture}
	cookie, err := h.Sessions.Establish(c.Request.Context(), c.Request, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session write failed"})
		return
	}
	http.SetCookie(c.Writer, cookie)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
