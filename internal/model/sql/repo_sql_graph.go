package sql

import (
	"context"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertFollow creates the edge if absent. The bool reports whether a row was
// actually inserted.
func (r *GormRepository) InsertFollow(ctx context.Context, followerID, followedID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errRepoNotInitialised
	}
	edge := db.Follow{FollowerID: followerID, FollowedID: followedID}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&edge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteFollow removes the edge. The bool reports whether it existed.
func (r *GormRepository) DeleteFollow(ctx context.Context, followerID, followedID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errRepoNotInitialised
	}
	result := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&db.Follow{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FollowExists reports whether followerID follows followedID.
func (r *GormRepository) FollowExists(ctx context.Context, followerID, followedID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errRepoNotInitialised
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error
	return count > 0, err
}

// ListFollowers lists edges pointing at userID, newest first.
func (r *GormRepository) ListFollowers(ctx context.Context, userID uint, params common.BaseParams) ([]db.Follow, *common.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, errRepoNotInitialised
	}
	query := r.db.WithContext(ctx).Model(&db.Follow{}).Where("followed_id = ?", userID)
	paged, meta, err := r.paginate(query, params)
	if err != nil {
		return nil, nil, err
	}
	var follows []db.Follow
	if err := paged.Preload("Follower.Role").Order("created_at DESC").Find(&follows).Error; err != nil {
		return nil, nil, err
	}
	return follows, meta, nil
}

// ListFollowing lists edges leaving userID, newest first.
func (r *GormRepository) ListFollowing(ctx context.Context, userID uint, params common.BaseParams) ([]db.Follow, *common.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, errRepoNotInitialised
	}
	query := r.db.WithContext(ctx).Model(&db.Follow{}).Where("follower_id = ?", userID)
	paged, meta, err := r.paginate(query, params)
	if err != nil {
		return nil, nil, err
	}
	var follows []db.Follow
	if err := paged.Preload("Followed.Role").Order("created_at DESC").Find(&follows).Error; err != nil {
		return nil, nil, err
	}
	return follows, meta, nil
}

// CountFollowers counts edges pointing at userID, the self edge included.
func (r *GormRepository) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errRepoNotInitialised
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Follow{}).Where("followed_id = ?", userID).Count(&count).Error
	return count, err
}

// ListFollowedPhotos returns photos whose author is followed by userID,
// newest first. The self edge puts the user's own photos in the result.
func (r *GormRepository) ListFollowedPhotos(ctx context.Context, userID uint, params common.BaseParams) ([]db.Photo, *common.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, errRepoNotInitialised
	}
	query := r.db.WithContext(ctx).Model(&db.Photo{}).
		Joins("JOIN follows ON follows.followed_id = photos.author_id").
		Where("follows.follower_id = ?", userID)
	paged, meta, err := r.paginate(query, params)
	if err != nil {
		return nil, nil, err
	}
	var photos []db.Photo
	if err := paged.Preload("Author").Order("photos.created_at DESC").Order("photos.id DESC").Find(&photos).Error; err != nil {
		return nil, nil, err
	}
	return photos, meta, nil
}

// InsertCollect creates the edge if absent. The bool reports whether a row
// was actually inserted.
func (r *GormRepository) InsertCollect(ctx context.Context, collectorID, photoID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errRepoNotInitialised
	}
	edge := db.Collect{CollectorID: collectorID, PhotoID: photoID}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&edge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteCollect removes the edge. The bool reports whether it existed.
func (r *GormRepository) DeleteCollect(ctx context.Context, collectorID, photoID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errRepoNotInitialised
	}
	result := r.db.WithContext(ctx).
		Where("collector_id = ? AND photo_id = ?", collectorID, photoID).
		Delete(&db.Collect{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CollectExists reports whether collectorID has collected photoID.
func (r *GormRepository) CollectExists(ctx context.Context, collectorID, photoID uint) (bool, error) {
	if r == nil || r.db == nil {
		return false, errRepoNotInitialised
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Collect{}).
		Where("collector_id = ? AND photo_id = ?", collectorID, photoID).
		Count(&count).Error
	return count > 0, err
}

// CountCollectors counts the identities that collected photoID.
func (r *GormRepository) CountCollectors(ctx context.Context, photoID uint) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errRepoNotInitialised
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Collect{}).Where("photo_id = ?", photoID).Count(&count).Error
	return count, err
}

// ListCollectors lists who collected photoID, newest first.
func (r *GormRepository) ListCollectors(ctx context.Context, photoID uint, params common.BaseParams) ([]db.Collect, *common.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, errRepoNotInitialised
	}
	query := r.db.WithContext(ctx).Model(&db.Collect{}).Where("photo_id = ?", photoID)
	return r.findCollects(query, params, "Collector.Role")
}

// ListCollections lists what collectorID collected, newest first.
func (r *GormRepository) ListCollections(ctx context.Context, collectorID uint, params common.BaseParams) ([]db.Collect, *common.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, errRepoNotInitialised
	}
	query := r.db.WithContext(ctx).Model(&db.Collect{}).Where("collector_id = ?", collectorID)
	return r.findCollects(query, params, "Photo.Author")
}

func (r *GormRepository) findCollects(query *gorm.DB, params common.BaseParams, preload string) ([]db.Collect, *common.Meta, error) {
	paged, meta, err := r.paginate(query, params)
	if err != nil {
		return nil, nil, err
	}
	var collects []db.Collect
	if err := paged.Preload(preload).Order("created_at DESC").Find(&collects).Error; err != nil {
		return nil, nil, err
	}
	return collects, meta, nil
}
