package model

import (
	"context"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
)

// Repository 定义数据库操作接口
type Repository interface {
	// WithinTransaction 在单个事务中执行 fn，fn 收到的 Repository 绑定到该事务。
	WithinTransaction(ctx context.Context, fn func(tx Repository) error) error

	// 角色与权限
	SyncRolePermissions(ctx context.Context, roleName string, permissions []string) error
	GetRoleByName(ctx context.Context, name string) (*db.Role, error)
	ListRoles(ctx context.Context) ([]db.Role, error)

	// 用户管理
	CreateUser(ctx context.Context, user *db.User) error
	UpdateUser(ctx context.Context, id uint, updates db.UserUpdates) error
	GetUserByID(ctx context.Context, id uint) (*db.User, error)
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByUsername(ctx context.Context, username string) (*db.User, error)
	EmailOwnedByOther(ctx context.Context, email string, excludeID uint) (bool, error)
	ListUsers(ctx context.Context, params *dto.UserQuery) ([]db.User, *common.Meta, error)
	// DeleteUser 级联删除用户，返回提交前在同一事务中收集的存储对象键（图片和头像）
	DeleteUser(ctx context.Context, id uint) ([]string, error)
	CountUsers(ctx context.Context) (int64, error)

	// 关注
	InsertFollow(ctx context.Context, followerID, followedID uint) (bool, error)
	DeleteFollow(ctx context.Context, followerID, followedID uint) (bool, error)
	FollowExists(ctx context.Context, followerID, followedID uint) (bool, error)
	ListFollowers(ctx context.Context, userID uint, params common.BaseParams) ([]db.Follow, *common.Meta, error)
	ListFollowing(ctx context.Context, userID uint, params common.BaseParams) ([]db.Follow, *common.Meta, error)
	CountFollowers(ctx context.Context, userID uint) (int64, error)
	ListFollowedPhotos(ctx context.Context, userID uint, params common.BaseParams) ([]db.Photo, *common.Meta, error)

	// 收藏
	InsertCollect(ctx context.Context, collectorID, photoID uint) (bool, error)
	DeleteCollect(ctx context.Context, collectorID, photoID uint) (bool, error)
	CollectExists(ctx context.Context, collectorID, photoID uint) (bool, error)
	CountCollectors(ctx context.Context, photoID uint) (int64, error)
	ListCollectors(ctx context.Context, photoID uint, params common.BaseParams) ([]db.Collect, *common.Meta, error)
	ListCollections(ctx context.Context, collectorID uint, params common.BaseParams) ([]db.Collect, *common.Meta, error)

	// 图片与评论
	CreatePhoto(ctx context.Context, photo *db.Photo) error
	GetPhoto(ctx context.Context, id uint) (*db.Photo, error)
	DeletePhoto(ctx context.Context, id uint) error
	CreateComment(ctx context.Context, comment *db.Comment) error
	GetComment(ctx context.Context, id uint) (*db.Comment, error)

	// 消息提醒
	CreateNotification(ctx context.Context, notification *db.Notification) error
	ListNotifications(ctx context.Context, receiverID uint, unreadOnly bool, params common.BaseParams) ([]db.Notification, *common.Meta, error)
	CountUnreadNotifications(ctx context.Context, receiverID uint) (int64, error)
	MarkNotificationRead(ctx context.Context, id, receiverID uint) error
	MarkAllNotificationsRead(ctx context.Context, receiverID uint) (int64, error)
}
