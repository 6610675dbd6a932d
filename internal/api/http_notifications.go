package api

import (
	"context"
	"net/http"
	"snapgraph/internal/entity/converter"
	"snapgraph/internal/entity/dto"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *HTTPHandler) ListNotifications(c *gin.Context) {
	var query dto.NotificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	unreadOnly := strings.EqualFold(strings.TrimSpace(query.Filter), "unread")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	items, meta, err := h.notifications.List(ctx, CurrentUser(c).ID, unreadOnly, query.BaseParams)
	if err != nil {
		ServiceError(c, err, "failed to load notifications")
		return
	}
	c.JSON(http.StatusOK, dto.NotificationListResponse{
		Notifications: converter.NotificationsToSummaries(items),
		Meta:          meta,
	})
}

func (h *HTTPHandler) UnreadNotificationCount(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	count, err := h.notifications.UnreadCount(ctx, CurrentUser(c).ID)
	if err != nil {
		ServiceError(c, err, "failed to count notifications")
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: count})
}

func (h *HTTPHandler) MarkNotificationRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.notifications.MarkRead(ctx, id, CurrentUser(c).ID); err != nil {
		ServiceError(c, err, "failed to mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) MarkAllNotificationsRead(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	changed, err := h.notifications.MarkAllRead(ctx, CurrentUser(c).ID)
	if err != nil {
		ServiceError(c, err, "failed to mark notifications read")
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: changed})
}
