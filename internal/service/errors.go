package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrAuthorizationDenied 权限检查未通过
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrInvalidToken 令牌无效：签名错误、过期、操作或用户不匹配，对外不区分
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrConflictingEmail 新邮箱已被其他用户占用
	ErrConflictingEmail = errors.New("email already owned by another identity")
	// ErrPasswordRequired 重置密码时未提供新密码
	ErrPasswordRequired = errors.New("new password is required")
	// ErrNotFound 目标不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIdentityDisabled 用户已被禁止登录
	ErrIdentityDisabled = errors.New("identity is blocked")
	// ErrEmailTaken 注册时邮箱已存在
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken 注册时用户名已存在
	ErrUsernameTaken = errors.New("username already registered")
	// ErrInvalidInput 请求参数不合法
	ErrInvalidInput = errors.New("invalid input")
	// ErrCommentsDisabled 图片关闭了评论
	ErrCommentsDisabled = errors.New("comments are disabled for this photo")
)

// notFound 把 gorm 的记录不存在转换为 ErrNotFound，其他错误原样返回
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
