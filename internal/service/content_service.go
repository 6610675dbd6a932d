package service

import (
	"context"
	"errors"
	"fmt"
	"snapgraph/internal/entity/db"
	"snapgraph/internal/model"
	"snapgraph/internal/storage"
	"snapgraph/internal/utils"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ContentService 图片与评论。它只提供关系图和提醒需要的最小内容能力。
type ContentService struct {
	repo     model.Repository
	store    storage.Storage
	notifier *NotificationService
}

// NewContentService 创建内容服务
func NewContentService(repo model.Repository, store storage.Storage, notifier *NotificationService) *ContentService {
	return &ContentService{repo: repo, store: store, notifier: notifier}
}

// CreatePhoto 保存图片文件并创建记录。数据库写入失败时删除已保存的文件。
func (s *ContentService) CreatePhoto(ctx context.Context, authorID uint, description, imagePayload string) (*db.Photo, error) {
	if s.store == nil {
		return nil, errors.New("storage not configured")
	}
	data, ext, err := utils.DecodeImagePayload(imagePayload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key, err := s.store.Save(ctx, data, storage.SaveOptions{
		Category:  storage.CategoryPhoto,
		Extension: ext,
		BaseName:  uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("save photo: %w", err)
	}

	photo := &db.Photo{
		Description: strings.TrimSpace(description),
		ObjectKey:   key,
		CanComment:  true,
		AuthorID:    authorID,
	}
	if err := s.repo.CreatePhoto(ctx, photo); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			logrus.WithError(delErr).WithField("object_key", key).Warn("failed to remove orphaned photo object")
		}
		return nil, err
	}

	created, err := s.repo.GetPhoto(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"photo_id": created.ID, "author_id": authorID}).Info("photo created")
	return created, nil
}

// GetPhoto 加载图片
func (s *ContentService) GetPhoto(ctx context.Context, id uint) (*db.Photo, error) {
	photo, err := s.repo.GetPhoto(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return photo, nil
}

// DeletePhoto 删除图片及其收藏边和评论，提交后删除存储对象。
// 只有作者或具有 MODERATE 权限的人可以删除，由 canModerate 表示后者。
func (s *ContentService) DeletePhoto(ctx context.Context, actorID uint, canModerate bool, photoID uint) error {
	photo, err := s.repo.GetPhoto(ctx, photoID)
	if err != nil {
		return notFound(err)
	}
	if photo.AuthorID != actorID && !canModerate {
		return ErrAuthorizationDenied
	}
	if err := s.repo.DeletePhoto(ctx, photoID); err != nil {
		return notFound(err)
	}
	if s.store != nil && photo.ObjectKey != "" {
		if err := s.store.Delete(ctx, photo.ObjectKey); err != nil {
			logrus.WithError(err).WithField("photo_id", photoID).Warn("failed to remove photo object")
		}
	}
	return nil
}

// AddComment 发表评论。图片作者收到评论提醒；回复时被回复者收到回复提醒。
// 评论和提醒在同一事务中提交。
func (s *ContentService) AddComment(ctx context.Context, authorID, photoID uint, body string, repliedID *uint) (*db.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrInvalidInput
	}

	var comment *db.Comment
	err := s.repo.WithinTransaction(ctx, func(tx model.Repository) error {
		actor, err := tx.GetUserByID(ctx, authorID)
		if err != nil {
			return notFound(err)
		}
		photo, err := tx.GetPhoto(ctx, photoID)
		if err != nil {
			return notFound(err)
		}
		if !photo.CanComment {
			return ErrCommentsDisabled
		}

		var replied *db.Comment
		if repliedID != nil {
			replied, err = tx.GetComment(ctx, *repliedID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: replied comment not found", ErrInvalidInput)
				}
				return err
			}
			if replied.PhotoID != photoID {
				return fmt.Errorf("%w: replied comment belongs to another photo", ErrInvalidInput)
			}
		}

		comment = &db.Comment{Body: body, AuthorID: authorID, PhotoID: photoID, RepliedID: repliedID}
		if err := tx.CreateComment(ctx, comment); err != nil {
			return err
		}

		if _, err := s.notifier.NotifyComment(ctx, tx, actor, photo); err != nil {
			return err
		}
		if replied != nil && replied.Author != nil {
			if _, err := s.notifier.NotifyReply(ctx, tx, actor, photo, replied.Author); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}
