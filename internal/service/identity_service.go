package service

import (
	"context"
	"errors"
	"fmt"
	"snapgraph/internal/auth"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/converter"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/model"
	"snapgraph/internal/rbac"
	"snapgraph/internal/storage"
	"snapgraph/internal/utils"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IdentityOptions 新用户的默认设置
type IdentityOptions struct {
	AdminEmail                        string
	DefaultReceiveFollowNotification  bool
	DefaultReceiveCommentNotification bool
	DefaultReceiveCollectNotification bool
}

// IdentityService 用户注册、登录、角色变更与注销
type IdentityService struct {
	repo  model.Repository
	store storage.Storage
	opts  IdentityOptions
}

// NewIdentityService 创建用户服务。store 为 nil 时注销不清理存储对象。
func NewIdentityService(repo model.Repository, store storage.Storage, opts IdentityOptions) *IdentityService {
	opts.AdminEmail = strings.ToLower(strings.TrimSpace(opts.AdminEmail))
	return &IdentityService{repo: repo, store: store, opts: opts}
}

// Register 创建用户，分配 User 角色（邮箱等于 ADMIN_EMAIL 时分配 Administrator），
// 并在同一事务中插入自关注边。自关注边不会产生提醒。
func (s *IdentityService) Register(ctx context.Context, req dto.AuthRegisterRequest) (*db.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, ErrInvalidInput
	}

	roleName := rbac.RoleUser
	if s.opts.AdminEmail != "" && email == s.opts.AdminEmail {
		roleName = rbac.RoleAdministrator
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	var created *db.User
	err = s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		if _, err := tx.GetUserByUsername(ctx, username); err == nil {
			return ErrUsernameTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if _, err := tx.GetUserByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		role, err := tx.GetRoleByName(ctx, roleName)
		if err != nil {
			return fmt.Errorf("load role %s: %w", roleName, err)
		}

		user := &db.User{
			Username:                   username,
			Email:                      email,
			PasswordHash:               hash,
			DisplayName:                displayName,
			Active:                     true,
			ReceiveFollowNotification:  s.opts.DefaultReceiveFollowNotification,
			ReceiveCommentNotification: s.opts.DefaultReceiveCommentNotification,
			ReceiveCollectNotification: s.opts.DefaultReceiveCollectNotification,
			PublicCollections:          true,
			RoleID:                     role.ID,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		// 自关注边：关注流通过它包含自己的图片，之后不可删除
		if _, err := tx.InsertFollow(ctx, user.ID, user.ID); err != nil {
			return fmt.Errorf("insert self follow: %w", err)
		}
		user.Role = role
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": created.ID, "role": roleName}).Info("user registered")
	return created, nil
}

// Authenticate 用邮箱或用户名登录。被禁止登录的用户无论角色如何都会被拒绝。
func (s *IdentityService) Authenticate(ctx context.Context, login, password string) (*db.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	var (
		user *db.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.repo.GetUserByEmail(ctx, login)
	} else {
		user, err = s.repo.GetUserByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrIdentityDisabled
	}
	return user, nil
}

// LoadPrincipal 加载会话对应的授权主体。用户不存在时返回 Anonymous。
func (s *IdentityService) LoadPrincipal(ctx context.Context, userID uint) (rbac.Principal, *db.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rbac.Anonymous{}, nil, nil
		}
		return nil, nil, err
	}
	if !user.Active {
		return rbac.Anonymous{}, user, ErrIdentityDisabled
	}
	return converter.UserToMember(user), user, nil
}

// GetUser 按 ID 加载用户
func (s *IdentityService) GetUser(ctx context.Context, id uint) (*db.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// GetUserByUsername 按用户名加载用户
func (s *IdentityService) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// GetUserByEmail 按邮箱加载用户，大小写不敏感
func (s *IdentityService) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// ListUsers 管理后台用户列表
func (s *IdentityService) ListUsers(ctx context.Context, query *dto.UserQuery) ([]db.User, *common.Meta, error) {
	return s.repo.ListUsers(ctx, query)
}

// Lock 禁用用户：locked=true，角色强制改为 Locked，原有的高级角色不会保留
func (s *IdentityService) Lock(ctx context.Context, userID uint) (*db.User, error) {
	return s.transition(ctx, userID, "lock", func(tx model.Repository, updates *db.UserUpdates) error {
		role, err := tx.GetRoleByName(ctx, rbac.RoleLocked)
		if err != nil {
			return err
		}
		locked := true
		updates.Locked = &locked
		updates.RoleID = &role.ID
		return nil
	})
}

// Unlock 解除禁用：locked=false，角色无条件重置为 User
func (s *IdentityService) Unlock(ctx context.Context, userID uint) (*db.User, error) {
	return s.transition(ctx, userID, "unlock", func(tx model.Repository, updates *db.UserUpdates) error {
		role, err := tx.GetRoleByName(ctx, rbac.RoleUser)
		if err != nil {
			return err
		}
		locked := false
		updates.Locked = &locked
		updates.RoleID = &role.ID
		return nil
	})
}

// Block 禁止登录，只修改 active
func (s *IdentityService) Block(ctx context.Context, userID uint) (*db.User, error) {
	return s.setActive(ctx, userID, false)
}

// Unblock 解除禁止登录，只修改 active
func (s *IdentityService) Unblock(ctx context.Context, userID uint) (*db.User, error) {
	return s.setActive(ctx, userID, true)
}

func (s *IdentityService) setActive(ctx context.Context, userID uint, active bool) (*db.User, error) {
	op := "block"
	if active {
		op = "unblock"
	}
	return s.transition(ctx, userID, op, func(_ model.Repository, updates *db.UserUpdates) error {
		updates.Active = &active
		return nil
	})
}

// AssignRole 管理员分配角色。分配 Locked 等同于 Lock；其他角色只修改角色，不改变 locked。
func (s *IdentityService) AssignRole(ctx context.Context, userID uint, roleName string) (*db.User, error) {
	roleName = strings.TrimSpace(roleName)
	if !rbac.IsCanonicalRole(roleName) {
		return nil, ErrInvalidInput
	}
	if roleName == rbac.RoleLocked {
		return s.Lock(ctx, userID)
	}
	return s.transition(ctx, userID, "assign_role", func(tx model.Repository, updates *db.UserUpdates) error {
		role, err := tx.GetRoleByName(ctx, roleName)
		if err != nil {
			return err
		}
		updates.RoleID = &role.ID
		return nil
	})
}

// transition 在一个事务里加载用户、应用修改并重新加载
func (s *IdentityService) transition(ctx context.Context, userID uint, op string, build func(tx model.Repository, updates *db.UserUpdates) error) (*db.User, error) {
	var result *db.User
	err := s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			return notFound(err)
		}
		var updates db.UserUpdates
		if err := build(tx, &updates); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, userID, updates); err != nil {
			return err
		}
		reloaded, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		result = reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":   userID,
		"operation": op,
		"role":      result.RoleName(),
		"locked":    result.Locked,
		"active":    result.Active,
	}).Info("identity state changed")
	return result, nil
}

// UpdateNotificationSettings 修改提醒订阅开关，nil 字段保持不变
func (s *IdentityService) UpdateNotificationSettings(ctx context.Context, userID uint, req dto.NotificationSettingsRequest) (dto.NotificationSettings, error) {
	user, err := s.transition(ctx, userID, "notification_settings", func(_ model.Repository, updates *db.UserUpdates) error {
		updates.ReceiveFollowNotification = req.ReceiveFollowNotification
		updates.ReceiveCommentNotification = req.ReceiveCommentNotification
		updates.ReceiveCollectNotification = req.ReceiveCollectNotification
		return nil
	})
	if err != nil {
		return dto.NotificationSettings{}, err
	}
	return converter.NotificationSettingsOf(user), nil
}

// UpdateAvatar 保存新头像并替换 avatar_key。提交后删除旧头像；写库失败时删除刚保存的对象。
func (s *IdentityService) UpdateAvatar(ctx context.Context, userID uint, imagePayload string) (*db.User, error) {
	if s.store == nil {
		return nil, errors.New("storage not configured")
	}
	data, ext, err := utils.DecodeImagePayload(imagePayload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	key, err := s.store.Save(ctx, data, storage.SaveOptions{
		Category:  storage.CategoryAvatar,
		Extension: ext,
		BaseName:  fmt.Sprintf("user-%d-%s", userID, uuid.NewString()),
	})
	if err != nil {
		return nil, fmt.Errorf("save avatar: %w", err)
	}

	var previous string
	user, err := s.transition(ctx, userID, "avatar", func(tx model.Repository, updates *db.UserUpdates) error {
		current, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return notFound(err)
		}
		previous = current.AvatarKey
		updates.AvatarKey = &key
		return nil
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			logrus.WithError(delErr).WithField("object_key", key).Warn("failed to remove orphaned avatar object")
		}
		return nil, err
	}

	if previous != "" && previous != key {
		if err := s.store.Delete(ctx, previous); err != nil {
			logrus.WithError(err).WithField("object_key", previous).Warn("failed to remove previous avatar")
		}
	}
	return user, nil
}

// DeleteIdentity 注销用户：删除双向关注边、收藏、收到的提醒、发布的图片和评论，
// 提交后再清理存储中的图片和头像。
func (s *IdentityService) DeleteIdentity(ctx context.Context, userID uint) error {
	keys, err := s.repo.DeleteUser(ctx, userID)
	if err != nil {
		return notFound(err)
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "objects": len(keys)}).Info("identity deleted")

	// 存储清理失败不回滚，只记录日志
	if err := storage.DeleteAll(ctx, s.store, keys); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("failed to remove stored objects")
	}
	return nil
}
