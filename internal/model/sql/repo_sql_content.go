package sql

import (
	"context"
	"fmt"
	"snapgraph/internal/entity/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreatePhoto persists a photo record.
func (r *GormRepository) CreatePhoto(ctx context.Context, photo *db.Photo) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	if photo == nil {
		return fmt.Errorf("photo is nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(photo).Error
}

// GetPhoto loads a photo with its author.
func (r *GormRepository) GetPhoto(ctx context.Context, id uint) (*db.Photo, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	var photo db.Photo
	if err := r.db.WithContext(ctx).Preload("Author").First(&photo, id).Error; err != nil {
		return nil, err
	}
	return &photo, nil
}

// DeletePhoto removes a photo with its collect edges and comments.
func (r *GormRepository) DeletePhoto(ctx context.Context, id uint) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&db.Photo{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("photo_id = ?", id).Delete(&db.Collect{}).Error; err != nil {
			return err
		}
		var commentIDs []uint
		if err := tx.Model(&db.Comment{}).Where("photo_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		return deleteComments(tx, commentIDs)
	})
}

// CreateComment persists a comment.
func (r *GormRepository) CreateComment(ctx context.Context, comment *db.Comment) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	if comment == nil {
		return fmt.Errorf("comment is nil")
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

// GetComment loads a comment with its author.
func (r *GormRepository) GetComment(ctx context.Context, id uint) (*db.Comment, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	var comment db.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}
