package rbac

// Principal is either an authenticated Member or Anonymous. The interface is
// sealed so that no other caller shape can reach the authorization predicate.
type Principal interface {
	principal()
}

// Anonymous is the unauthenticated caller. It holds no capability.
type Anonymous struct{}

func (Anonymous) principal() {}

// Member is an authenticated identity together with the permission set of
// its role as loaded from storage.
type Member struct {
	ID          uint
	RoleName    string
	Permissions PermissionSet
	Locked      bool
	Active      bool
	Confirmed   bool
}

func (*Member) principal() {}

// HasPermission is the authorization predicate. Anonymous callers and
// unknown permission names are always denied.
func HasPermission(p Principal, name string) bool {
	m, ok := p.(*Member)
	if !ok || m == nil {
		return false
	}
	perm, ok := ParsePermission(name)
	if !ok {
		return false
	}
	return m.Permissions.Contains(perm)
}

// IsAdmin reports whether the principal holds the Administrator role.
func IsAdmin(p Principal) bool {
	m, ok := p.(*Member)
	if !ok || m == nil {
		return false
	}
	return m.RoleName == RoleAdministrator
}

// MemberID returns the identity id of an authenticated principal, or 0.
func MemberID(p Principal) uint {
	if m, ok := p.(*Member); ok && m != nil {
		return m.ID
	}
	return 0
}
