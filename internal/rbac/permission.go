// Package rbac holds the canonical role/permission matrix and the
// authorization predicate used by the route layer.
package rbac

import "strings"

// Permission is one capability from the fixed alphabet.
type Permission string

const (
	PermissionFollow     Permission = "FOLLOW"
	PermissionCollect    Permission = "COLLECT"
	PermissionComment    Permission = "COMMENT"
	PermissionUpload     Permission = "UPLOAD"
	PermissionModerate   Permission = "MODERATE"
	PermissionAdminister Permission = "ADMINISTER"
)

const (
	RoleLocked        = "Locked"
	RoleUser          = "User"
	RoleModerator     = "Moderator"
	RoleAdministrator = "Administrator"
)

// Permissions lists the alphabet in canonical order.
var Permissions = []Permission{
	PermissionFollow,
	PermissionCollect,
	PermissionComment,
	PermissionUpload,
	PermissionModerate,
	PermissionAdminister,
}

// Roles lists the canonical roles from least to most privileged.
var Roles = []string{RoleLocked, RoleUser, RoleModerator, RoleAdministrator}

var canonicalMatrix = map[string][]Permission{
	RoleLocked:        {PermissionFollow, PermissionCollect},
	RoleUser:          {PermissionFollow, PermissionCollect, PermissionComment, PermissionUpload},
	RoleModerator:     {PermissionFollow, PermissionCollect, PermissionComment, PermissionUpload, PermissionModerate},
	RoleAdministrator: {PermissionFollow, PermissionCollect, PermissionComment, PermissionUpload, PermissionModerate, PermissionAdminister},
}

// ParsePermission maps a name onto the alphabet. Unknown names report false.
func ParsePermission(name string) (Permission, bool) {
	candidate := Permission(strings.ToUpper(strings.TrimSpace(name)))
	for _, p := range Permissions {
		if p == candidate {
			return p, true
		}
	}
	return "", false
}

// IsCanonicalRole reports whether name is one of the four compiled-in roles.
func IsCanonicalRole(name string) bool {
	_, ok := canonicalMatrix[name]
	return ok
}

// CanonicalPermissions returns a copy of the compiled-in permission list for role.
func CanonicalPermissions(role string) []Permission {
	perms := canonicalMatrix[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// PermissionSet is the permission bundle of a role.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from raw names, silently dropping names
// outside the alphabet.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		if p, ok := ParsePermission(name); ok {
			set[p] = struct{}{}
		}
	}
	return set
}

// Contains reports membership.
func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// SubsetOf reports whether every permission of s is in other.
func (s PermissionSet) SubsetOf(other PermissionSet) bool {
	for p := range s {
		if !other.Contains(p) {
			return false
		}
	}
	return true
}

// CanonicalSet returns the compiled-in permission set of role.
func CanonicalSet(role string) PermissionSet {
	set := make(PermissionSet)
	for _, p := range canonicalMatrix[role] {
		set[p] = struct{}{}
	}
	return set
}
