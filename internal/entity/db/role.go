package db

// Role 是命名的权限集合。
type Role struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	Name        string       `gorm:"column:name;type:varchar(30);uniqueIndex;not null" json:"name"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
}

// TableName 指定表名。
func (Role) TableName() string {
	return "roles"
}

// PermissionNames returns the names of the loaded permissions.
func (r *Role) PermissionNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// Permission 是固定字母表中的一个权限名。
type Permission struct {
	ID   uint   `gorm:"primarykey" json:"id"`
	Name string `gorm:"column:name;type:varchar(30);uniqueIndex;not null" json:"name"`
}

// TableName 指定表名。
func (Permission) TableName() string {
	return "permissions"
}
