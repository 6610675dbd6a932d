package sql

import (
	"context"
	"fmt"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/entity/dto"
	"snapgraph/internal/rbac"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepository) userQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&db.User{}).Preload("Role.Permissions")
}

// CreateUser persists a new user record.
func (r *GormRepository) CreateUser(ctx context.Context, user *db.User) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return r.db.WithContext(ctx).Omit("Role").Create(user).Error
}

// UpdateUser updates an existing user entry.
func (r *GormRepository) UpdateUser(ctx context.Context, id uint, updates db.UserUpdates) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	if id == 0 {
		return fmt.Errorf("invalid user")
	}
	fields := updates.ToMap()
	if len(fields) == 0 {
		return nil
	}
	if email, ok := fields["email"].(string); ok {
		fields["email"] = strings.ToLower(strings.TrimSpace(email))
	}
	return r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Updates(fields).Error
}

// GetUserByEmail loads a user by email.
func (r *GormRepository) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil, fmt.Errorf("email is empty")
	}

	var user db.User
	if err := r.userQuery(ctx).Where("LOWER(email) = ?", strings.ToLower(trimmed)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername loads a user by username.
func (r *GormRepository) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return nil, fmt.Errorf("username is empty")
	}

	var user db.User
	if err := r.userQuery(ctx).Where("username = ?", trimmed).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID loads a user by ID.
func (r *GormRepository) GetUserByID(ctx context.Context, id uint) (*db.User, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	if id == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	var user db.User
	if err := r.userQuery(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailOwnedByOther reports whether email belongs to an identity other than excludeID.
func (r *GormRepository) EmailOwnedByOther(ctx context.Context, email string, excludeID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errRepoNotInitialised
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&db.User{}).
		Where("LOWER(email) = ? AND id <> ?", strings.ToLower(strings.TrimSpace(email)), excludeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns paginated users.
func (r *GormRepository) ListUsers(ctx context.Context, params *dto.UserQuery) ([]db.User, *common.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, errRepoNotInitialised
	}

	query := r.db.WithContext(ctx).Model(&db.User{})
	var base common.BaseParams
	if params != nil {
		base = params.BaseParams
		switch strings.ToLower(strings.TrimSpace(params.Filter)) {
		case "locked":
			query = query.Where("users.locked = ?", true)
		case "blocked":
			query = query.Where("users.active = ?", false)
		case "administrator":
			query = query.Joins("JOIN roles ON roles.id = users.role_id").Where("roles.name = ?", rbac.RoleAdministrator)
		case "moderator":
			query = query.Joins("JOIN roles ON roles.id = users.role_id").Where("roles.name = ?", rbac.RoleModerator)
		}
		if keyword := strings.TrimSpace(params.Keyword); keyword != "" {
			kw := "%" + strings.ToLower(keyword) + "%"
			query = query.Where("LOWER(users.email) LIKE ? OR LOWER(users.username) LIKE ? OR LOWER(users.display_name) LIKE ?", kw, kw, kw)
		}
	}

	paged, meta, err := r.paginate(query, base)
	if err != nil {
		return nil, nil, err
	}

	var users []db.User
	if err := paged.Preload("Role.Permissions").Order("users.id DESC").Find(&users).Error; err != nil {
		return nil, nil, err
	}
	return users, meta, nil
}

// DeleteUser removes a user together with every edge, photo, comment and
// notification that references it. The returned keys are the stored objects
// (photos and avatar) that belonged to the deleted rows; they are read inside
// the same transaction so a concurrent upload cannot slip between listing and delete.
func (r *GormRepository) DeleteUser(ctx context.Context, id uint) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	var keys []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user db.User
		// 锁住用户行，并发写入的外键检查会等待删除完成
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "avatar_key").Take(&user, id).Error; err != nil {
			return err
		}

		if err := tx.Where("follower_id = ? OR followed_id = ?", id, id).Delete(&db.Follow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("collector_id = ?", id).Delete(&db.Collect{}).Error; err != nil {
			return err
		}
		if err := tx.Where("receiver_id = ?", id).Delete(&db.Notification{}).Error; err != nil {
			return err
		}

		var photos []db.Photo
		if err := tx.Select("id", "object_key").Where("author_id = ?", id).Find(&photos).Error; err != nil {
			return err
		}
		photoIDs := make([]uint, 0, len(photos))
		objectKeys := make([]string, 0, len(photos)+1)
		for _, p := range photos {
			photoIDs = append(photoIDs, p.ID)
			if p.ObjectKey != "" {
				objectKeys = append(objectKeys, p.ObjectKey)
			}
		}
		if user.AvatarKey != "" {
			objectKeys = append(objectKeys, user.AvatarKey)
		}
		if len(photoIDs) > 0 {
			if err := tx.Where("photo_id IN ?", photoIDs).Delete(&db.Collect{}).Error; err != nil {
				return err
			}
		}

		var commentIDs []uint
		commentQuery := tx.Model(&db.Comment{}).Where("author_id = ?", id)
		if len(photoIDs) > 0 {
			commentQuery = commentQuery.Or("photo_id IN ?", photoIDs)
		}
		if err := commentQuery.Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := deleteComments(tx, commentIDs); err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&db.Photo{}).Error; err != nil {
			return err
		}

		if err := tx.Delete(&db.User{}, id).Error; err != nil {
			return err
		}
		keys = objectKeys
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// deleteComments 删除评论，并把回复这些评论的 replied_id 置空
func deleteComments(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&db.Comment{}).Where("replied_id IN ?", ids).Update("replied_id", nil).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&db.Comment{}).Error
}

// CountUsers returns total user count.
func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errRepoNotInitialised
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
