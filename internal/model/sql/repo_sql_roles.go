package sql

import (
	"context"
	"fmt"
	"snapgraph/internal/entity/db"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncRolePermissions upserts a role and replaces its permission set with
// exactly the given names. Missing permission rows are created on the way.
func (r *GormRepository) SyncRolePermissions(ctx context.Context, roleName string, permissions []string) error {
	if r == nil || r.db == nil {
		return errRepoNotInitialised
	}
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return fmt.Errorf("role name is empty")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		perms := make([]db.Permission, 0, len(permissions))
		for _, name := range permissions {
			p := db.Permission{Name: name}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
				return err
			}
			if err := tx.Where("name = ?", name).First(&p).Error; err != nil {
				return err
			}
			perms = append(perms, p)
		}

		role := db.Role{Name: roleName}
		if err := tx.Where(db.Role{Name: roleName}).FirstOrCreate(&role).Error; err != nil {
			return err
		}
		return tx.Model(&role).Association("Permissions").Replace(perms)
	})
}

// GetRoleByName loads a role with its permissions.
func (r *GormRepository) GetRoleByName(ctx context.Context, name string) (*db.Role, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	var role db.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").Where("name = ?", strings.TrimSpace(name)).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns every persisted role with its permissions.
func (r *GormRepository) ListRoles(ctx context.Context) ([]db.Role, error) {
	if r == nil || r.db == nil {
		return nil, errRepoNotInitialised
	}
	var roles []db.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").Order("id ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}
