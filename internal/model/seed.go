package model

import (
	"context"
	"fmt"
	"snapgraph/internal/rbac"
)

// InitRoles 确保四个规范角色存在，且权限集合与规范矩阵完全一致。
// 可重复执行：已存在的角色会被同步回规范权限。
func InitRoles(ctx context.Context, repo Repository) error {
	if repo == nil {
		return fmt.Errorf("repository is nil")
	}
	return repo.WithinTransaction(ctx, func(tx Repository) error {
		for _, role := range rbac.Roles {
			perms := rbac.CanonicalPermissions(role)
			names := make([]string, len(perms))
			for i, p := range perms {
				names[i] = string(p)
			}
			if err := tx.SyncRolePermissions(ctx, role, names); err != nil {
				return fmt.Errorf("sync role %s: %w", role, err)
			}
		}
		return nil
	})
}
