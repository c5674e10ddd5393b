package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edulib/edulib-api/internal/service"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
	"github.com/edulib/edulib-api/pkg/response"
)

// TagHandler wires HTTP endpoints to the tag and stats services.
type TagHandler struct {
	tags  *service.TagService
	stats *service.StatsService
}

// NewTagHandler creates a new handler.
func NewTagHandler(tags *service.TagService, stats *service.StatsService) *TagHandler {
	return &TagHandler{tags: tags, stats: stats}
}

// List godoc
// @Summary List tags
// @Description Returns the full tag catalog sorted by name
// @Tags Tags
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tags [get]
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, tags, nil)
}

// Create godoc
// @Summary Create a tag
// @Description Staff only. Tag names are unique case-insensitively.
// @Tags Tags
// @Accept json
// @Produce json
// @Param payload body service.CreateTagRequest true "Tag payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tags [post]
func (h *TagHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tag payload"))
		return
	}

	tag, err := h.tags.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, tag)
}

// Top godoc
// @Summary Most used tags
// @Description Counts publicly listable resources per tag, count descending with name as tie-break
// @Tags Tags
// @Produce json
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {object} response.Envelope
// @Router /tags/top [get]
func (h *TagHandler) Top(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	counts, err := h.stats.TopTags(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, counts, nil)
}
