package api

import (
	"context"
	"net/http"
	"snapgraph/internal/auth"
	"snapgraph/internal/entity/converter"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/service"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// parseIDParam 解析路径中的正整数 ID，失败时已写入 400 响应
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	idValue := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(idValue, 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func (h *HTTPHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.identity.GetUser(ctx, id)
	if err != nil {
		ServiceError(c, err, "failed to load user")
		return
	}
	summary := converter.PublicUserSummary(user)
	summary.AvatarURL = h.publicURL(user.AvatarKey)
	c.JSON(http.StatusOK, summary)
}

// UploadAvatar 替换当前用户的头像
func (h *HTTPHandler) UploadAvatar(c *gin.Context) {
	var req dto.AvatarUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	user, err := h.identity.UpdateAvatar(ctx, CurrentUser(c).ID, req.Image)
	if err != nil {
		ServiceError(c, err, "failed to update avatar")
		return
	}
	summary := converter.UserToSummary(user)
	summary.AvatarURL = h.publicURL(user.AvatarKey)
	c.JSON(http.StatusOK, summary)
}

// RequestEmailChange 向新邮箱发送确认链接
func (h *HTTPHandler) RequestEmailChange(c *gin.Context) {
	var req dto.ChangeEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.accounts.IssueChangeEmailToken(ctx, CurrentUser(c), req.Email); err != nil {
		ServiceError(c, err, "failed to request email change")
		return
	}
	c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "确认邮件已发送到新邮箱"})
}

// ApplyEmailChange 应用修改邮箱令牌
func (h *HTTPHandler) ApplyEmailChange(c *gin.Context) {
	user := CurrentUser(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.accounts.VerifyAndApply(ctx, c.Param("token"), user, auth.OperationChangeEmail, service.ApplyExtra{}); err != nil {
		ServiceError(c, err, "failed to change email")
		return
	}
	c.JSON(http.StatusOK, converter.UserToSummary(user))
}

func (h *HTTPHandler) GetNotificationSettings(c *gin.Context) {
	c.JSON(http.StatusOK, converter.NotificationSettingsOf(CurrentUser(c)))
}

func (h *HTTPHandler) UpdateNotificationSettings(c *gin.Context) {
	var req dto.NotificationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	settings, err := h.identity.UpdateNotificationSettings(ctx, CurrentUser(c).ID, req)
	if err != nil {
		ServiceError(c, err, "failed to update notification settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

// DeleteMe 注销当前账户
func (h *HTTPHandler) DeleteMe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.identity.DeleteIdentity(ctx, CurrentUser(c).ID); err != nil {
		ServiceError(c, err, "failed to delete account")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListUsers(c *gin.Context) {
	var query dto.UserQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	users, meta, err := h.identity.ListUsers(ctx, &query)
	if err != nil {
		ServiceError(c, err, "failed to load users")
		return
	}

	c.JSON(http.StatusOK, dto.UserListResponse{
		Users: converter.UsersToSummaries(users),
		Meta:  meta,
	})
}

func (h *HTTPHandler) LockUser(c *gin.Context) {
	h.transitionUser(c, "lock", h.identity.Lock)
}

func (h *HTTPHandler) UnlockUser(c *gin.Context) {
	h.transitionUser(c, "unlock", h.identity.Unlock)
}

func (h *HTTPHandler) BlockUser(c *gin.Context) {
	h.transitionUser(c, "block", h.identity.Block)
}

func (h *HTTPHandler) UnblockUser(c *gin.Context) {
	h.transitionUser(c, "unblock", h.identity.Unblock)
}

func (h *HTTPHandler) AssignRole(c *gin.Context) {
	var req dto.RoleAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	h.transitionUser(c, "assign_role", func(ctx context.Context, id uint) (*db.User, error) {
		return h.identity.AssignRole(ctx, id, req.Role)
	})
}

func (h *HTTPHandler) transitionUser(c *gin.Context, op string, apply func(ctx context.Context, id uint) (*db.User, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := apply(ctx, id)
	if err != nil {
		ServiceError(c, err, "failed to "+op+" user")
		return
	}
	logrus.WithFields(logrus.Fields{
		"operator_id": CurrentUser(c).ID,
		"user_id":     id,
		"operation":   op,
	}).Info("admin user transition")
	c.JSON(http.StatusOK, converter.UserToSummary(user))
}
