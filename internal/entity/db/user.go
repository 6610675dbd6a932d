package db

import "time"

// User 表示持久化的用户账户。
//
// Role、Locked、Active 三者相互独立：Locked 收窄权限但不阻止登录，Active 为 false 时禁止登录。
type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `gorm:"column:username;type:varchar(64);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"column:email;type:varchar(254);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Bio          string    `gorm:"column:bio;type:varchar(255)" json:"bio"`
	AvatarKey    string    `gorm:"column:avatar_key;type:varchar(255)" json:"avatar_key"`

	Confirmed bool `gorm:"column:confirmed;not null" json:"confirmed"`
	Locked    bool `gorm:"column:locked;not null" json:"locked"`
	Active    bool `gorm:"column:active;not null" json:"active"`

	PublicCollections          bool `gorm:"column:public_collections;not null" json:"public_collections"`
	ReceiveFollowNotification  bool `gorm:"column:receive_follow_notification;not null" json:"receive_follow_notification"`
	ReceiveCommentNotification bool `gorm:"column:receive_comment_notification;not null" json:"receive_comment_notification"`
	ReceiveCollectNotification bool `gorm:"column:receive_collect_notification;not null" json:"receive_collect_notification"`

	RoleID uint  `gorm:"column:role_id;index;not null" json:"role_id"`
	Role   *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// TableName 指定表名。
func (User) TableName() string {
	return "users"
}

// RoleName returns the loaded role name, or "" when the role was not preloaded.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}
