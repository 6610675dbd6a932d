package api

import (
	"context"
	"net/http"
	"snapgraph/internal/entity/converter"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/rbac"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *HTTPHandler) CreatePhoto(c *gin.Context) {
	var req dto.PhotoCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	photo, err := h.content.CreatePhoto(ctx, CurrentUser(c).ID, req.Description, req.Image)
	if err != nil {
		ServiceError(c, err, "failed to create photo")
		return
	}
	c.JSON(http.StatusCreated, converter.PhotoToSummary(photo, h.publicURL))
}

func (h *HTTPHandler) GetPhoto(c *gin.Context) {
	photoID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	photo, err := h.content.GetPhoto(ctx, photoID)
	if err != nil {
		ServiceError(c, err, "failed to load photo")
		return
	}
	c.JSON(http.StatusOK, converter.PhotoToSummary(photo, h.publicURL))
}

// DeletePhoto 作者或版主可以删除图片
func (h *HTTPHandler) DeletePhoto(c *gin.Context) {
	photoID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	principal := CurrentPrincipal(c)
	canModerate := rbac.HasPermission(principal, string(rbac.PermissionModerate))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.content.DeletePhoto(ctx, rbac.MemberID(principal), canModerate, photoID); err != nil {
		ServiceError(c, err, "failed to delete photo")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) AddComment(c *gin.Context) {
	photoID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.CommentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	comment, err := h.content.AddComment(ctx, CurrentUser(c).ID, photoID, req.Body, req.RepliedID)
	if err != nil {
		ServiceError(c, err, "failed to add comment")
		return
	}
	c.JSON(http.StatusCreated, converter.CommentToSummary(comment))
}
