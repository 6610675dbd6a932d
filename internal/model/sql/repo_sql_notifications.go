package sql

import (
	"context"
	"fmt"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/db"
)

// CreateNotification appends a notification to the receiver's inbox.
func (r *GormRepository) CreateNotification(ctx context.Context, notification *db.Notification) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	if notification == nil {
		return fmt.Errorf("notification is nil")
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListNotifications returns the receiver's inbox, newest first.
func (r *GormRepository) ListNotifications(ctx context.Context, receiverID uint, unreadOnly bool, params common.BaseParams) ([]db.Notification, *common.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, errRepoNotInitialised
	}
	query := r.db.WithContext(ctx).Model(&db.Notification{}).Where("receiver_id = ?", receiverID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	paged, meta, err := r.paginate(query, params)
	if err != nil {
		return nil, nil, err
	}
	var items []db.Notification
	if err := paged.Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return items, meta, nil
}

// CountUnreadNotifications counts unread inbox entries.
func (r *GormRepository) CountUnreadNotifications(ctx context.Context, receiverID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errRepoNotInitialised
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error
	return count, err
}

// MarkNotificationRead marks one notification read. Notifications of other
// receivers are reported as not found.
func (r *GormRepository) MarkNotificationRead(ctx context.Context, id, receiverID uint) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	var n db.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND receiver_id = ?", id, receiverID).First(&n).Error; err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	return r.db.WithContext(ctx).Model(&n).Update("is_read", true).Error
}

// MarkAllNotificationsRead marks the whole inbox read and returns how many changed.
func (r *GormRepository) MarkAllNotificationsRead(ctx context.Context, receiverID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errRepoNotInitialised
	}
	result := r.db.WithContext(ctx).Model(&db.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
