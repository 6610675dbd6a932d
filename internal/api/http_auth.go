package api

import (
	"context"
	"errors"
	"net/http"
	"snapgraph/internal/auth"
	"snapgraph/internal/entity/converter"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/service"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (h *HTTPHandler) Register(c *gin.Context) {
	var req dto.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.identity.Register(ctx, req)
	if err != nil {
		ServiceError(c, err, "failed to register user")
		return
	}

	// 确认邮件发送失败不影响注册，用户可以稍后重新发送
	if _, err := h.accounts.IssueConfirmToken(ctx, user); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("failed to send confirmation mail")
	}

	h.respondSession(c, http.StatusCreated, user)
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req dto.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.identity.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("login", req.Login).Warn("login attempt failed")
		}
		ServiceError(c, err, "failed to authenticate")
		return
	}

	h.respondSession(c, http.StatusOK, user)
}

func (h *HTTPHandler) respondSession(c *gin.Context, status int, user *db.User) {
	token, expiresAt, err := h.authManager.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "failed to create session")
		return
	}
	c.JSON(status, dto.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      converter.UserToSummary(user),
	})
}

func (h *HTTPHandler) Me(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}
	summary := converter.UserToSummary(user)
	summary.AvatarURL = h.publicURL(user.AvatarKey)
	c.JSON(http.StatusOK, summary)
}

// Confirm 应用确认账户令牌
func (h *HTTPHandler) Confirm(c *gin.Context) {
	user := CurrentUser(c)
	if user.Confirmed {
		c.JSON(http.StatusOK, converter.UserToSummary(user))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.accounts.VerifyAndApply(ctx, c.Param("token"), user, auth.OperationConfirm, service.ApplyExtra{}); err != nil {
		ServiceError(c, err, "failed to confirm account")
		return
	}
	c.JSON(http.StatusOK, converter.UserToSummary(user))
}

// ResendConfirmation 重新发送确认邮件
func (h *HTTPHandler) ResendConfirmation(c *gin.Context) {
	user := CurrentUser(c)
	if user.Confirmed {
		c.JSON(http.StatusOK, dto.MessageResponse{Message: "账户已确认"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.accounts.IssueConfirmToken(ctx, user); err != nil {
		ServiceError(c, err, "failed to send confirmation mail")
		return
	}
	c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "确认邮件已发送"})
}

// ForgotPassword 发送重置密码邮件。无论邮箱是否存在都返回相同响应。
func (h *HTTPHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.accounts.IssueResetPasswordToken(ctx, req.Email); err != nil {
		ServiceError(c, err, "failed to send reset mail")
		return
	}
	c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "如果该邮箱已注册，重置邮件已发送"})
}

// ResetPassword 应用重置密码令牌。令牌绑定的用户必须与邮箱对应的用户一致。
func (h *HTTPHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.identity.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidToken, "链接无效或已过期")
			return
		}
		ServiceError(c, err, "failed to reset password")
		return
	}

	extra := service.ApplyExtra{NewPassword: req.Password}
	if err := h.accounts.VerifyAndApply(ctx, c.Param("token"), user, auth.OperationResetPassword, extra); err != nil {
		ServiceError(c, err, "failed to reset password")
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "密码已更新"})
}
