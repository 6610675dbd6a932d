package service

import (
	"context"
	"errors"
	"fmt"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/metrics"
	"snapgraph/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GraphService 关注与收藏关系。
//
// 所有变更都是幂等的：已经处于目标状态时直接返回成功。只有真正插入的边才会触发提醒。
type GraphService struct {
	repo         model.Repository
	notifier     *NotificationService
	metrics      *metrics.Metrics
	feedPageSize int64
}

// NewGraphService 创建关系服务
func NewGraphService(repo model.Repository, notifier *NotificationService, m *metrics.Metrics, feedPageSize int) *GraphService {
	if feedPageSize <= 0 {
		feedPageSize = common.DefaultPageSize
	}
	return &GraphService{
		repo:         repo,
		notifier:     notifier,
		metrics:      m,
		feedPageSize: int64(feedPageSize),
	}
}

// Follow 关注用户。重复关注是空操作，关注自己不产生提醒。
func (s *GraphService) Follow(ctx context.Context, followerID, followeeID uint) error {
	var inserted bool
	err := s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		follower, err := tx.GetUserByID(ctx, followerID)
		if err != nil {
			return notFound(err)
		}
		followee, err := tx.GetUserByID(ctx, followeeID)
		if err != nil {
			return notFound(err)
		}

		inserted, err = insertEdge(func() (bool, error) { return tx.InsertFollow(ctx, followerID, followeeID) })
		if err != nil {
			return fmt.Errorf("insert follow: %w", err)
		}
		if !inserted || followerID == followeeID {
			return nil
		}
		_, err = s.notifier.NotifyFollow(ctx, tx, follower, followee)
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveGraphMutation("follow", inserted)
	logrus.WithFields(logrus.Fields{
		"follower_id": followerID,
		"followed_id": followeeID,
		"inserted":    inserted,
	}).Debug("follow")
	return nil
}

// Unfollow 取消关注。自关注边不可删除，目标是自己时直接返回成功。
func (s *GraphService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return nil
	}
	var removed bool
	err := s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		var err error
		removed, err = tx.DeleteFollow(ctx, followerID, followeeID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	s.metrics.ObserveGraphMutation("unfollow", removed)
	return nil
}

// IsFollowing 判断 a 是否关注了 b。b 尚未分配 ID 时返回 false。
func (s *GraphService) IsFollowing(ctx context.Context, a, b uint) (bool, error) {
	if a == 0 || b == 0 {
		return false, nil
	}
	return s.repo.FollowExists(ctx, a, b)
}

// FollowedFeed 返回关注的人（包括自己）发布的图片，最新的在前
func (s *GraphService) FollowedFeed(ctx context.Context, userID uint, params common.BaseParams) ([]db.Photo, *common.Meta, error) {
	return s.repo.ListFollowedPhotos(ctx, userID, params.Normalize(s.feedPageSize))
}

// Followers 粉丝列表，包含自关注边
func (s *GraphService) Followers(ctx context.Context, userID uint, params common.BaseParams) ([]db.Follow, *common.Meta, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, nil, notFound(err)
	}
	return s.repo.ListFollowers(ctx, userID, params)
}

// Following 关注列表，包含自关注边
func (s *GraphService) Following(ctx context.Context, userID uint, params common.BaseParams) ([]db.Follow, *common.Meta, error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return nil, nil, notFound(err)
	}
	return s.repo.ListFollowing(ctx, userID, params)
}

// FollowerCount 粉丝数，不计自关注边
func (s *GraphService) FollowerCount(ctx context.Context, userID uint) (int64, error) {
	count, err := s.repo.CountFollowers(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		count--
	}
	return count, nil
}

// Collect 收藏图片。重复收藏是空操作。
func (s *GraphService) Collect(ctx context.Context, collectorID, photoID uint) error {
	var inserted bool
	err := s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		collector, err := tx.GetUserByID(ctx, collectorID)
		if err != nil {
			return notFound(err)
		}
		photo, err := tx.GetPhoto(ctx, photoID)
		if err != nil {
			return notFound(err)
		}

		inserted, err = insertEdge(func() (bool, error) { return tx.InsertCollect(ctx, collectorID, photoID) })
		if err != nil {
			return fmt.Errorf("insert collect: %w", err)
		}
		if !inserted {
			return nil
		}
		_, err = s.notifier.NotifyCollect(ctx, tx, collector, photo)
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveGraphMutation("collect", inserted)
	return nil
}

// Uncollect 取消收藏。未收藏时是空操作。
func (s *GraphService) Uncollect(ctx context.Context, collectorID, photoID uint) error {
	var removed bool
	err := s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		var err error
		removed, err = tx.DeleteCollect(ctx, collectorID, photoID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete collect: %w", err)
	}
	s.metrics.ObserveGraphMutation("uncollect", removed)
	return nil
}

// IsCollecting 判断是否已收藏
func (s *GraphService) IsCollecting(ctx context.Context, collectorID, photoID uint) (bool, error) {
	if collectorID == 0 || photoID == 0 {
		return false, nil
	}
	return s.repo.CollectExists(ctx, collectorID, photoID)
}

// CollectorCount 收藏人数
func (s *GraphService) CollectorCount(ctx context.Context, photoID uint) (int64, error) {
	return s.repo.CountCollectors(ctx, photoID)
}

// Collectors 收藏了图片的用户
func (s *GraphService) Collectors(ctx context.Context, photoID uint, params common.BaseParams) ([]db.Collect, *common.Meta, error) {
	if _, err := s.repo.GetPhoto(ctx, photoID); err != nil {
		return nil, nil, notFound(err)
	}
	return s.repo.ListCollectors(ctx, photoID, params)
}

// Collections 用户收藏的图片。收藏未公开时只有本人可见。
func (s *GraphService) Collections(ctx context.Context, viewerID, ownerID uint, params common.BaseParams) ([]db.Collect, *common.Meta, error) {
	owner, err := s.repo.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	if viewerID != owner.ID && !owner.PublicCollections {
		return nil, nil, ErrAuthorizationDenied
	}
	return s.repo.ListCollections(ctx, ownerID, params)
}

// insertEdge 唯一键冲突视为已存在的边
func insertEdge(insert func() (bool, error)) (bool, error) {
	inserted, err := insert()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return inserted, err
}
