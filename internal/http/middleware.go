package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/helper"
	"github.com/tazhibayda/profile-service/internal/identity"
)

const (
	requestIDKey = "X-Request-ID"
	identityKey  = "identity"
)

// RequestID propagates X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDKey)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDKey, id)
		c.Next()
	}
}

// RequireSession aborts with 401 when the request has no session and stores
// the identity in the gin context otherwise.
func RequireSession(s *identity.SessionAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.GetCurrentSession(c.Request)
		if errors.Is(err, identity.ErrUnauthenticated) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}
		c.Set(identityKey, id)
		tagSubject(c, helper.Hash8(id.Subject))
		c.Next()
	}
}

func currentIdentity(c *gin.Context) domain.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(domain.Identity)
	return id
}

// CORS lets the dashboard front-end call the API with its session cookie.
func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPatch, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", requestIDKey},
		ExposeHeaders:    []string{requestIDKey},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
