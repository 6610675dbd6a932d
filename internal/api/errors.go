package api

import (
	"errors"
	"net/http"
	"snapgraph/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	// 认证错误码
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeEmailExists        = "ERR_EMAIL_EXISTS"
	ErrCodeUsernameExists     = "ERR_USERNAME_EXISTS"
	ErrCodeUserDisabled       = "ERR_USER_DISABLED"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"
	ErrCodeInvalidToken       = "ERR_INVALID_TOKEN"
	ErrCodeUnconfirmed        = "ERR_UNCONFIRMED"

	// 资源错误码
	ErrCodeUserNotFound  = "ERR_USER_NOT_FOUND"
	ErrCodePhotoNotFound = "ERR_PHOTO_NOT_FOUND"

	// 业务逻辑错误码
	ErrCodeMissingField      = "ERR_MISSING_FIELD"
	ErrCodePasswordRequired  = "ERR_PASSWORD_REQUIRED"
	ErrCodeCommentsDisabled  = "ERR_COMMENTS_DISABLED"
	ErrCodeCollectionPrivate = "ERR_COLLECTION_PRIVATE"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// 常用错误响应快捷函数

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// serviceErrorMapping 服务层哨兵错误到 HTTP 响应的映射
var serviceErrorMapping = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{service.ErrAuthorizationDenied, http.StatusForbidden, ErrCodeForbidden, "没有权限"},
	{service.ErrInvalidToken, http.StatusBadRequest, ErrCodeInvalidToken, "链接无效或已过期"},
	{service.ErrConflictingEmail, http.StatusConflict, ErrCodeEmailExists, "邮箱已被使用"},
	{service.ErrEmailTaken, http.StatusConflict, ErrCodeEmailExists, "邮箱已被注册"},
	{service.ErrUsernameTaken, http.StatusConflict, ErrCodeUsernameExists, "用户名已被使用"},
	{service.ErrPasswordRequired, http.StatusBadRequest, ErrCodePasswordRequired, "需要提供新密码"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials, "账号或密码错误"},
	{service.ErrIdentityDisabled, http.StatusForbidden, ErrCodeUserDisabled, "账户已被禁用"},
	{service.ErrCommentsDisabled, http.StatusForbidden, ErrCodeCommentsDisabled, "该图片已关闭评论"},
	{service.ErrNotFound, http.StatusNotFound, ErrCodeNotFound, "资源不存在"},
	{service.ErrInvalidInput, http.StatusBadRequest, ErrCodeInvalidRequest, "无效的请求"},
}

// ServiceError 把服务层错误转换成统一的错误响应，未知错误记录日志后返回 500
func ServiceError(c *gin.Context, err error, fallback string) {
	for _, m := range serviceErrorMapping {
		if errors.Is(err, m.err) {
			ErrorResponse(c, m.status, m.code, m.message)
			return
		}
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error(fallback)
	InternalError(c, fallback)
}
