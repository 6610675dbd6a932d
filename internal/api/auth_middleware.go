package api

import (
	"context"
	"errors"
	"net/http"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/rbac"
	"snapgraph/internal/service"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	currentPrincipalContextKey = "current-principal"
	currentUserContextKey      = "current-user"
)

// bearerToken 提取 Authorization 头中的 Bearer Token，头不存在时返回空串
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return "", true
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// authenticate 解析会话令牌并加载授权主体。失败时已写入响应。
func (h *HTTPHandler) authenticate(c *gin.Context, token string) bool {
	claims, err := h.authManager.ParseToken(token)
	if err != nil {
		logrus.WithError(err).Warn("failed to parse jwt token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
			Code:    ErrCodeSessionExpired,
			Message: "Token 无效或已过期",
		})
		return false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	principal, user, err := h.identity.LoadPrincipal(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrIdentityDisabled) {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeUserDisabled,
				Message: "账户已被禁用",
			})
			return false
		}
		logrus.WithError(err).WithField("user_id", claims.UserID).Error("failed to load user")
		c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{
			Code:    ErrCodeInternalError,
			Message: "验证用户失败",
		})
		return false
	}
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
			Code:    ErrCodeUserNotFound,
			Message: "用户不存在",
		})
		return false
	}

	c.Set(currentPrincipalContextKey, principal)
	c.Set(currentUserContextKey, user)
	return true
}

// AuthMiddleware JWT 认证中间件
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "无效的授权头格式",
			})
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "缺少授权头",
			})
			return
		}
		if !h.authenticate(c, token) {
			return
		}
		c.Next()
	}
}

// OptionalAuth 没有授权头时以匿名身份继续；有授权头时必须有效
func (h *HTTPHandler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
				Code:    ErrCodeUnauthorized,
				Message: "无效的授权头格式",
			})
			return
		}
		if token == "" {
			c.Set(currentPrincipalContextKey, rbac.Principal(rbac.Anonymous{}))
			c.Next()
			return
		}
		if !h.authenticate(c, token) {
			return
		}
		c.Next()
	}
}

// RequirePermission 权限守卫中间件，每次请求都按当前角色重新判断
func (h *HTTPHandler) RequirePermission(perm rbac.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rbac.HasPermission(CurrentPrincipal(c), string(perm)) {
			h.metrics.ObserveDenied(string(perm))
			logrus.WithFields(logrus.Fields{
				"user_id":    rbac.MemberID(CurrentPrincipal(c)),
				"permission": string(perm),
				"path":       c.FullPath(),
			}).Info("authorization denied")
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeForbidden,
				Message: "没有权限",
			})
			return
		}
		c.Next()
	}
}

// RequireConfirmed 要求账户已确认邮箱
func (h *HTTPHandler) RequireConfirmed() gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := CurrentPrincipal(c).(*rbac.Member)
		if !ok || member == nil || !member.Confirmed {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeUnconfirmed,
				Message: "请先确认邮箱",
			})
			return
		}
		c.Next()
	}
}

// CurrentPrincipal 从上下文获取授权主体，未认证时返回 Anonymous
func CurrentPrincipal(c *gin.Context) rbac.Principal {
	value, exists := c.Get(currentPrincipalContextKey)
	if !exists {
		return rbac.Anonymous{}
	}
	principal, ok := value.(rbac.Principal)
	if !ok || principal == nil {
		return rbac.Anonymous{}
	}
	return principal
}

// CurrentUser 从上下文获取当前认证用户
func CurrentUser(c *gin.Context) *db.User {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return nil
	}
	user, ok := value.(*db.User)
	if !ok {
		return nil
	}
	return user
}
