package sql

import (
	"context"
	"errors"
	"fmt"
	"snapgraph/internal/entity/common"
	"snapgraph/internal/model"

	"gorm.io/gorm"
)

var errRepoNotInitialised = errors.New("repository not initialised")

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new repository instance
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// DB exposes the underlying handle for migrations and tests.
func (r *GormRepository) DB() *gorm.DB {
	return r.db
}

// WithinTransaction runs fn against a repository bound to a single transaction.
// Nested calls reuse the outer transaction through GORM savepoints.
func (r *GormRepository) WithinTransaction(ctx context.Context, fn func(tx model.Repository) error) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	if fn == nil {
		return fmt.Errorf("transaction func is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

// paginate applies offset/limit and returns pagination metadata
func (r *GormRepository) paginate(query *gorm.DB, params common.BaseParams) (*gorm.DB, *common.Meta, error) {
	params = params.Normalize(common.DefaultPageSize)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, nil, err
	}

	meta := &common.Meta{
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	return query.Offset(params.Offset()).Limit(int(params.PageSize)), meta, nil
}

var _ model.Repository = (*GormRepository)(nil)
