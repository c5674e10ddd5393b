package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulib/edulib-api/internal/service"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
	"github.com/edulib/edulib-api/pkg/response"
)

// EngagementHandler wires HTTP endpoints to the engagement service.
type EngagementHandler struct {
	service *service.EngagementService
	metrics *service.MetricsService
}

// NewEngagementHandler creates a new handler.
func NewEngagementHandler(svc *service.EngagementService, metrics *service.MetricsService) *EngagementHandler {
	return &EngagementHandler{service: svc, metrics: metrics}
}

// Rate godoc
// @Summary Rate a resource
// @Description Records or overwrites the caller's 1-5 rating. Only publicly listable resources are open for rating.
// @Tags Engagement
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body service.RateRequest true "Rating payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /resources/{id}/rate [post]
func (h *EngagementHandler) Rate(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}

	rating, err := h.service.Rate(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordEngagement("rating")
	response.JSON(c, http.StatusOK, rating, nil)
}

// Comment godoc
// @Summary Comment on a resource
// @Description Appends a comment to a publicly listable resource.
// @Tags Engagement
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param payload body service.CommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id}/comments [post]
func (h *EngagementHandler) Comment(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	comment, err := h.service.Comment(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordEngagement("comment")
	response.Created(c, comment)
}

// ListComments godoc
// @Summary List comments
// @Description Returns a resource's comments newest first. Visibility follows the resource.
// @Tags Engagement
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/comments [get]
func (h *EngagementHandler) ListComments(c *gin.Context) {
	comments, err := h.service.ListComments(c.Request.Context(), optionalActorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, comments, nil)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Description Author or staff only.
// @Tags Engagement
// @Param id path string true "Comment ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /comments/{id} [delete]
func (h *EngagementHandler) DeleteComment(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteComment(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ToggleSave godoc
// @Summary Toggle save
// @Description Flips the caller's save membership for a resource and returns the resulting state.
// @Tags Engagement
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/save [post]
func (h *EngagementHandler) ToggleSave(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	state, err := h.service.ToggleSave(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordEngagement("save")
	response.JSON(c, http.StatusOK, state, nil)
}
