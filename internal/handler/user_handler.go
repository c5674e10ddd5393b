package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulib/edulib-api/internal/service"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
	"github.com/edulib/edulib-api/pkg/response"
)

// UserHandler wires HTTP endpoints to the user service.
type UserHandler struct {
	service *service.UserService
	metrics *service.MetricsService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService, metrics *service.MetricsService) *UserHandler {
	return &UserHandler{service: svc, metrics: metrics}
}

// Me godoc
// @Summary Get current account
// @Description Returns the caller's own account including trust and block state
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// GetProfile godoc
// @Summary Get public profile
// @Description Returns a user's public profile with publication totals
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// ListPendingTeachers godoc
// @Summary List teachers awaiting review
// @Description Staff only. Oldest first.
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/pending [get]
func (h *UserHandler) ListPendingTeachers(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	users, err := h.service.ListPendingTeachers(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, nil)
}

// Approve godoc
// @Summary Approve a pending teacher
// @Description Staff only. Transitions trust from PENDING to APPROVED.
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/approve [post]
func (h *UserHandler) Approve(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.ApproveTeacher(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModerationDecision("user", "approved")
	response.JSON(c, http.StatusOK, user, nil)
}

// Reject godoc
// @Summary Reject a pending teacher
// @Description Staff only. Transitions trust from PENDING to REJECTED (terminal).
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/reject [post]
func (h *UserHandler) Reject(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.RejectTeacher(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModerationDecision("user", "rejected")
	response.JSON(c, http.StatusOK, user, nil)
}

// Block godoc
// @Summary Block a user
// @Description Staff only. Requires a non-empty reason. Staff accounts cannot be blocked.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body object true "Block reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/block [post]
func (h *UserHandler) Block(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "block reason is required"))
		return
	}

	user, err := h.service.Block(c.Request.Context(), claims.UserID, c.Param("id"), payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModerationDecision("user", "blocked")
	response.JSON(c, http.StatusOK, user, nil)
}

// Unblock godoc
// @Summary Unblock a user
// @Description Staff only. Clears the stored block reason.
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/unblock [post]
func (h *UserHandler) Unblock(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.Unblock(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModerationDecision("user", "unblocked")
	response.JSON(c, http.StatusOK, user, nil)
}

// ToggleStaff godoc
// @Summary Grant or revoke the staff flag
// @Description Staff only.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body object true "Staff flag"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/staff [post]
func (h *UserHandler) ToggleStaff(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Staff *bool `json:"staff" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "staff flag is required"))
		return
	}

	user, err := h.service.ToggleStaff(c.Request.Context(), claims.UserID, c.Param("id"), *payload.Staff)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}
