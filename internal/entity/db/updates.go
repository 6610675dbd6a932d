package db

// UserUpdates 用户更新字段，nil 表示不修改。
type UserUpdates struct {
	Email                      *string
	DisplayName                *string
	Bio                        *string
	AvatarKey                  *string
	PasswordHash               *string
	RoleID                     *uint
	Confirmed                  *bool
	Locked                     *bool
	Active                     *bool
	PublicCollections          *bool
	ReceiveFollowNotification  *bool
	ReceiveCommentNotification *bool
	ReceiveCollectNotification *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Email != nil {
		updates["email"] = *u.Email
	}
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Bio != nil {
		updates["bio"] = *u.Bio
	}
	if u.AvatarKey != nil {
		updates["avatar_key"] = *u.AvatarKey
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.RoleID != nil {
		updates["role_id"] = *u.RoleID
	}
	if u.Confirmed != nil {
		updates["confirmed"] = *u.Confirmed
	}
	if u.Locked != nil {
		updates["locked"] = *u.Locked
	}
	if u.Active != nil {
		updates["active"] = *u.Active
	}
	if u.PublicCollections != nil {
		updates["public_collections"] = *u.PublicCollections
	}
	if u.ReceiveFollowNotification != nil {
		updates["receive_follow_notification"] = *u.ReceiveFollowNotification
	}
	if u.ReceiveCommentNotification != nil {
		updates["receive_comment_notification"] = *u.ReceiveCommentNotification
	}
	if u.ReceiveCollectNotification != nil {
		updates["receive_collect_notification"] = *u.ReceiveCollectNotification
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
