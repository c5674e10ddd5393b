package handler

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edulib/edulib-api/internal/models"
	"github.com/edulib/edulib-api/internal/service"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
	"github.com/edulib/edulib-api/pkg/response"
	"github.com/edulib/edulib-api/pkg/storage"
)

// ResourceHandler wires HTTP endpoints to the resource service.
type ResourceHandler struct {
	service *service.ResourceService
	uploads *storage.LocalStorage
	metrics *service.MetricsService
}

// NewResourceHandler creates a new handler.
func NewResourceHandler(svc *service.ResourceService, uploads *storage.LocalStorage, metrics *service.MetricsService) *ResourceHandler {
	return &ResourceHandler{service: svc, uploads: uploads, metrics: metrics}
}

// List godoc
// @Summary List resources
// @Description Public catalog. Authenticated callers also see their own non-public resources; staff see everything.
// @Tags Resources
// @Produce json
// @Param search query string false "Search in title and description"
// @Param tag query string false "Filter by tag name"
// @Param author query string false "Filter by author display name"
// @Param sort_by query string false "created_at, title, views or downloads"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := models.ResourceFilter{
		Search:    c.Query("search"),
		TagName:   c.Query("tag"),
		Author:    c.Query("author"),
		SortBy:    c.DefaultQuery("sort_by", "created_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
		Page:      page,
		PageSize:  pageSize,
	}

	resources, pagination, err := h.service.List(c.Request.Context(), optionalActorID(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resources, pagination)
}

// Create godoc
// @Summary Publish a resource
// @Description Creates a pending resource. Accepts JSON or multipart form with an attached file.
// @Tags Resources
// @Accept json
// @Accept mpfd
// @Produce json
// @Param payload body service.CreateResourceRequest true "Resource payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateResourceRequest
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		parsed, err := h.parseMultipartCreate(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		req = *parsed
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
			return
		}
	}

	resource, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if req.FileRef != nil && h.uploads != nil {
			_ = h.uploads.Delete(*req.FileRef)
		}
		response.Error(c, err)
		return
	}

	response.Created(c, resource)
}

func (h *ResourceHandler) parseMultipartCreate(c *gin.Context) (*service.CreateResourceRequest, error) {
	req := &service.CreateResourceRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
	}
	if raw := strings.TrimSpace(c.PostForm("tag_ids")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.TagIDs = append(req.TagIDs, id)
			}
		}
	}

	file, err := c.FormFile("file")
	if err != nil {
		// File is optional; a resource may be a description-only entry.
		return req, nil
	}

	if h.uploads == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "file storage is not configured")
	}

	src, err := file.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read uploaded file")
	}
	defer src.Close()

	fileRef := uuid.NewString() + filepath.Ext(file.Filename)
	if _, err := h.uploads.SaveStream(fileRef, src); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}

	req.FileRef = &fileRef
	return req, nil
}

// Mine godoc
// @Summary List own resources
// @Description All resources owned by the caller regardless of status
// @Tags Resources
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /resources/mine [get]
func (h *ResourceHandler) Mine(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resources, err := h.service.Mine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resources, nil)
}

// Saved godoc
// @Summary List saved resources
// @Description Publicly listable resources the caller has saved
// @Tags Resources
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /resources/saved [get]
func (h *ResourceHandler) Saved(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resources, err := h.service.Saved(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resources, nil)
}

// Pending godoc
// @Summary List resources awaiting moderation
// @Description Staff only. Oldest first.
// @Tags Resources
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/pending [get]
func (h *ResourceHandler) Pending(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resources, err := h.service.Pending(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resources, nil)
}

// Get godoc
// @Summary Get a resource
// @Description Returns a resource with derived engagement figures. Non-public resources are visible to owner and staff only.
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), optionalActorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete a resource
// @Description Owner or staff only. Removes engagement rows and the stored file.
// @Tags Resources
// @Param id path string true "Resource ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Approve godoc
// @Summary Approve a pending resource
// @Description Staff only. PENDING to APPROVED, exactly once.
// @Tags Moderation
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/{id}/approve [post]
func (h *ResourceHandler) Approve(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resource, err := h.service.Approve(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModerationDecision("resource", "approved")
	response.JSON(c, http.StatusOK, resource, nil)
}

// Reject godoc
// @Summary Reject a pending resource
// @Description Staff only. PENDING to REJECTED, terminal.
// @Tags Moderation
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /resources/{id}/reject [post]
func (h *ResourceHandler) Reject(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resource, err := h.service.Reject(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordModerationDecision("resource", "rejected")
	response.JSON(c, http.StatusOK, resource, nil)
}

// Hide godoc
// @Summary Hide a resource
// @Description Staff only. Pulls the resource from the public catalog without changing its status.
// @Tags Moderation
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id}/hide [post]
func (h *ResourceHandler) Hide(c *gin.Context) {
	h.setFlag(c, true, h.service.SetHidden)
}

// Unhide godoc
// @Summary Unhide a resource
// @Description Staff only.
// @Tags Moderation
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id}/unhide [post]
func (h *ResourceHandler) Unhide(c *gin.Context) {
	h.setFlag(c, false, h.service.SetHidden)
}

// MarkProblematic godoc
// @Summary Mark a resource problematic
// @Description Staff only. The marker does not affect visibility.
// @Tags Moderation
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id}/problematic [post]
func (h *ResourceHandler) MarkProblematic(c *gin.Context) {
	h.setFlag(c, true, h.service.SetProblematic)
}

// UnmarkProblematic godoc
// @Summary Clear the problematic marker
// @Description Staff only.
// @Tags Moderation
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/{id}/unproblematic [post]
func (h *ResourceHandler) UnmarkProblematic(c *gin.Context) {
	h.setFlag(c, false, h.service.SetProblematic)
}

func (h *ResourceHandler) setFlag(c *gin.Context, value bool, update func(ctx context.Context, actorID, resourceID string, v bool) (*models.Resource, error)) {
	claims, ok := currentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resource, err := update(c.Request.Context(), claims.UserID, c.Param("id"), value)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resource, nil)
}

// View godoc
// @Summary Record a view
// @Description Increments the view counter and returns the new total.
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/view [post]
func (h *ResourceHandler) View(c *gin.Context) {
	count, err := h.service.RecordView(c.Request.Context(), optionalActorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"views_count": count}, nil)
}

// Download godoc
// @Summary Request a download link
// @Description Increments the download counter and returns an expiring signed link.
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/download [post]
func (h *ResourceHandler) Download(c *gin.Context) {
	link, err := h.service.Download(c.Request.Context(), optionalActorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, link, nil)
}

// FetchFile godoc
// @Summary Fetch a file by signed token
// @Description Serves the file behind a previously issued download link.
// @Tags Resources
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/{token} [get]
func (h *ResourceHandler) FetchFile(c *gin.Context) {
	fileRef, err := h.service.ResolveDownloadToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.uploads == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "file storage is not configured"))
		return
	}

	path, err := h.uploads.Path(fileRef)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}

	c.FileAttachment(path, fileRef)
}
