package converter

import (
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/rbac"
)

// UserToSummary converts a db.User to dto.UserSummary.
func UserToSummary(u *db.User) dto.UserSummary {
	if u == nil {
		return dto.UserSummary{}
	}
	return dto.UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.RoleName(),
		Confirmed:   u.Confirmed,
		Locked:      u.Locked,
		Active:      u.Active,
		CreatedAt:   u.CreatedAt,
	}
}

// PublicUserSummary is UserToSummary without the email address.
func PublicUserSummary(u *db.User) dto.UserSummary {
	summary := UserToSummary(u)
	summary.Email = ""
	return summary
}

// UsersToSummaries converts a slice of db.User to dto.UserSummary.
func UsersToSummaries(users []db.User) []dto.UserSummary {
	summaries := make([]dto.UserSummary, len(users))
	for i := range users {
		summaries[i] = UserToSummary(&users[i])
	}
	return summaries
}

// UserToMember builds the authorization principal of a user whose role
// permissions have been preloaded.
func UserToMember(u *db.User) *rbac.Member {
	if u == nil {
		return nil
	}
	var names []string
	if u.Role != nil {
		names = u.Role.PermissionNames()
	}
	return &rbac.Member{
		ID:          u.ID,
		RoleName:    u.RoleName(),
		Permissions: rbac.NewPermissionSet(names...),
		Locked:      u.Locked,
		Active:      u.Active,
		Confirmed:   u.Confirmed,
	}
}

// NotificationSettingsOf extracts the opt-in flags.
func NotificationSettingsOf(u *db.User) dto.NotificationSettings {
	if u == nil {
		return dto.NotificationSettings{}
	}
	return dto.NotificationSettings{
		ReceiveFollowNotification:  u.ReceiveFollowNotification,
		ReceiveCommentNotification: u.ReceiveCommentNotification,
		ReceiveCollectNotification: u.ReceiveCollectNotification,
	}
}
