package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/peopledeskhq/peopledesk/internal/middleware"
	"github.com/peopledeskhq/peopledesk/internal/models"
	"github.com/peopledeskhq/peopledesk/internal/security"
	appErrors "github.com/peopledeskhq/peopledesk/pkg/errors"
	"github.com/peopledeskhq/peopledesk/pkg/response"
)

// SecurityHandler exposes session and activity views for the current user.
type SecurityHandler struct {
	db       *gorm.DB
	security *security.Service
}

func NewSecurityHandler(db *gorm.DB, securitySvc *security.Service) *SecurityHandler {
	return &SecurityHandler{db: db, security: securitySvc}
}

func currentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxUserIDKey)
	if !ok {
		return "", false
	}
	userID, _ := v.(string)
	return userID, userID != ""
}

// GET /api/auth/me
func (h *SecurityHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).
		Preload("Role").
		Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.Error(c, appErrors.ErrUserNotFound)
		return
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "load user"))
		return
	}

	response.Success(c, http.StatusOK, user.Summarize())
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/logout
func (h *SecurityHandler) Logout(c *gin.Context) {
	var req logoutRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.security.InvalidateSession(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, security.ErrSessionNotFound) {
			response.Error(c, appErrors.ErrSessionNotFound)
			return
		}
		response.Error(c, appErrors.Wrap(err, "invalidate session"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/security/sessions
func (h *SecurityHandler) Sessions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.security.GetUserSessions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "list sessions"))
		return
	}

	response.Success(c, http.StatusOK, sessions)
}

// DELETE /api/security/sessions
func (h *SecurityHandler) RevokeAllSessions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.security.InvalidateAllSessions(c.Request.Context(), userID); err != nil {
		response.Error(c, appErrors.Wrap(err, "invalidate sessions"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/security/activities
func (h *SecurityHandler) Activities(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", security.DefaultActivityPageSize)
	offset := parseIntQuery(c, "offset", 0)

	activities, err := h.security.GetUserActivities(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "list activities"))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, activities, &response.Meta{
		Limit:  limit,
		Offset: offset,
	})
}
