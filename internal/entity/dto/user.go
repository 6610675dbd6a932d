package dto

import (
	"snapgraph/internal/entity/common"
	"time"
)

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Confirmed   bool      `json:"confirmed"`
	Locked      bool      `json:"locked"`
	Active      bool      `json:"active"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AvatarUploadRequest 上传头像，image 为 data URL 或 base64
type AvatarUploadRequest struct {
	Image string `json:"image" binding:"required"`
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	common.BaseParams
	// Filter: all, locked, blocked, administrator, moderator
	Filter  string `json:"filter" form:"filter" query:"filter"`
	Keyword string `json:"keyword" form:"keyword" query:"keyword"`
}

// UserListResponse is the response for listing users.
type UserListResponse struct {
	Users []UserSummary `json:"users"`
	Meta  *common.Meta  `json:"meta"`
}

// RoleAssignRequest is the payload for assigning a role.
type RoleAssignRequest struct {
	Role string `json:"role" binding:"required"`
}

// NotificationSettingsRequest updates per-category opt-ins.
type NotificationSettingsRequest struct {
	ReceiveFollowNotification  *bool `json:"receive_follow_notification,omitempty"`
	ReceiveCommentNotification *bool `json:"receive_comment_notification,omitempty"`
	ReceiveCollectNotification *bool `json:"receive_collect_notification,omitempty"`
}

// NotificationSettings is the current opt-in state.
type NotificationSettings struct {
	ReceiveFollowNotification  bool `json:"receive_follow_notification"`
	ReceiveCommentNotification bool `json:"receive_comment_notification"`
	ReceiveCollectNotification bool `json:"receive_collect_notification"`
}
