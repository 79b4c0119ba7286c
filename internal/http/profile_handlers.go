package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tazhibayda/profile-service/internal/domain"
	"github.com/tazhibayda/profile-service/internal/profile"
)

type updateResp struct {
	Success            bool             `json:"success"`
	Message            string           `json:"message"`
	User               domain.Identity  `json:"user"`
	Metadata           *domain.Metadata `json:"metadata"`
	IsSocialConnection bool             `json:"isSocialConnection"`
	AuthUpdateSuccess  bool             `json:"authUpdateSuccess"`
	RequiresReauth     bool             `json:"requiresReauth,omitempty"`
	Ignored            []string         `json:"ignoredFields,omitempty"`
}

// UpdateProfile godoc
// @Summary Update identity fields and settings of the signed-in user
// @Description Identity provider failures are reported in message/authUpdateSuccess and do not fail the request. A metadata failure does.
// @Tags user
// @Accept json
// @Produce json
// @Param payload body domain.UpdateRequest true "any subset of fields"
// @Success 200 {object} updateResp
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/user [patch]
func (h *Handler) UpdateProfile(c *gin.Context) {
	var in domain.UpdateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Profiles.Update(c.Request, in, requestID(c))
	switch {
	case err == nil:
	case errors.Is(err, profile.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	case errors.Is(err, domain.ErrInvalidUpdate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, profile.ErrMetadataWriteFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user data in database."})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, updateResp{
		Success:            true,
		Message:            res.Message(),
		User:               res.User,
		Metadata:           res.Metadata,
		IsSocialConnection: res.Federated,
		AuthUpdateSuccess:  res.AuthUpdateSuccess,
		RequiresReauth:     res.PasswordChanged,
		Ignored:            res.Dropped,
	})
}

// Me godoc
// @Summary Session identity and settings of the signed-in user
// @Description metadata is null when none was written yet or when the store could not be read (metadataError=true).
// @Tags user
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/user/me [get]
func (h *Handler) Me(c *gin.Context) {
	id, md, err := h.Profiles.Current(c.Request)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"user": id, "metadata": md})
	case errors.Is(err, profile.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	case errors.Is(err, profile.ErrMetadataReadFailed):
		c.JSON(http.StatusOK, gin.H{"user": id, "metadata": nil, "metadataError": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
	}
}

// Metadata godoc
// @Summary Settings document of the signed-in user
// @Tags user
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/user/metadata [get]
func (h *Handler) Metadata(c *gin.Context) {
	id := currentIdentity(c)
	md, err := h.Profiles.Metadata(c.Request.Context(), id.Subject)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read user data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metadata": md})
}
