package api

import (
	"context"
	"net/http"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/converter"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/rbac"
	"time"

	"github.com/gin-gonic/gin"
)

func bindPage(c *gin.Context) (common.BaseParams, bool) {
	var params common.BaseParams
	if err := c.ShouldBindQuery(&params); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return params, false
	}
	return params, true
}

// Follow 关注用户，重复关注返回相同结果
func (h *HTTPHandler) Follow(c *gin.Context) {
	h.mutateFollow(c, true)
}

// Unfollow 取消关注
func (h *HTTPHandler) Unfollow(c *gin.Context) {
	h.mutateFollow(c, false)
}

func (h *HTTPHandler) mutateFollow(c *gin.Context, follow bool) {
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID := CurrentUser(c).ID

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var err error
	if follow {
		err = h.graph.Follow(ctx, userID, targetID)
	} else {
		err = h.graph.Unfollow(ctx, userID, targetID)
	}
	if err != nil {
		ServiceError(c, err, "failed to update follow")
		return
	}

	active, err := h.graph.IsFollowing(ctx, userID, targetID)
	if err != nil {
		ServiceError(c, err, "failed to load follow")
		return
	}
	count, err := h.graph.FollowerCount(ctx, targetID)
	if err != nil {
		ServiceError(c, err, "failed to count followers")
		return
	}
	c.JSON(http.StatusOK, dto.RelationStatus{Active: active, Count: count})
}

func (h *HTTPHandler) ListFollowers(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	params, ok := bindPage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	follows, meta, err := h.graph.Followers(ctx, userID, params)
	if err != nil {
		ServiceError(c, err, "failed to load followers")
		return
	}
	c.JSON(http.StatusOK, dto.EdgeListResponse{Items: converter.FollowersToEdges(follows), Meta: meta})
}

func (h *HTTPHandler) ListFollowing(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	params, ok := bindPage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	follows, meta, err := h.graph.Following(ctx, userID, params)
	if err != nil {
		ServiceError(c, err, "failed to load following")
		return
	}
	c.JSON(http.StatusOK, dto.EdgeListResponse{Items: converter.FollowingToEdges(follows), Meta: meta})
}

// ListCollections 用户收藏的图片，未公开时只有本人可见
func (h *HTTPHandler) ListCollections(c *gin.Context) {
	ownerID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	params, ok := bindPage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	collects, meta, err := h.graph.Collections(ctx, rbac.MemberID(CurrentPrincipal(c)), ownerID, params)
	if err != nil {
		ServiceError(c, err, "failed to load collections")
		return
	}
	photos := make([]dto.PhotoSummary, 0, len(collects))
	for _, item := range collects {
		photos = append(photos, converter.PhotoToSummary(item.Photo, h.publicURL))
	}
	c.JSON(http.StatusOK, dto.PhotoListResponse{Photos: photos, Meta: meta})
}

// Feed 关注的人（包括自己）发布的图片
func (h *HTTPHandler) Feed(c *gin.Context) {
	params, ok := bindPage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	photos, meta, err := h.graph.FollowedFeed(ctx, CurrentUser(c).ID, params)
	if err != nil {
		ServiceError(c, err, "failed to load feed")
		return
	}
	c.JSON(http.StatusOK, dto.PhotoListResponse{Photos: converter.PhotosToSummaries(photos, h.publicURL), Meta: meta})
}

func (h *HTTPHandler) Collect(c *gin.Context) {
	h.mutateCollect(c, true)
}

func (h *HTTPHandler) Uncollect(c *gin.Context) {
	h.mutateCollect(c, false)
}

func (h *HTTPHandler) mutateCollect(c *gin.Context, collect bool) {
	photoID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID := CurrentUser(c).ID

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var err error
	if collect {
		err = h.graph.Collect(ctx, userID, photoID)
	} else {
		err = h.graph.Uncollect(ctx, userID, photoID)
	}
	if err != nil {
		ServiceError(c, err, "failed to update collect")
		return
	}

	active, err := h.graph.IsCollecting(ctx, userID, photoID)
	if err != nil {
		ServiceError(c, err, "failed to load collect")
		return
	}
	count, err := h.graph.CollectorCount(ctx, photoID)
	if err != nil {
		ServiceError(c, err, "failed to count collectors")
		return
	}
	c.JSON(http.StatusOK, dto.RelationStatus{Active: active, Count: count})
}

func (h *HTTPHandler) ListCollectors(c *gin.Context) {
	photoID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	params, ok := bindPage(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	collects, meta, err := h.graph.Collectors(ctx, photoID, params)
	if err != nil {
		ServiceError(c, err, "failed to load collectors")
		return
	}
	c.JSON(http.StatusOK, dto.EdgeListResponse{Items: converter.CollectorsToEdges(collects), Meta: meta})
}
