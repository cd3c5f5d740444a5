package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

// Permission represents an atomic capability.
type Permission string

const (
	PermDashboard         Permission = "dashboard"
	PermProducts          Permission = "products"
	PermCategories        Permission = "categories"
	PermExhibitions       Permission = "exhibitions"
	PermPOS               Permission = "pos"
	PermReports           Permission = "reports"
	PermDayEndClose       Permission = "day_end_close"
	PermExhibitionClosure Permission = "exhibition_closure"
	PermUserManagement    Permission = "user_management"
	PermPriceOverride     Permission = "price_override"
	PermSalesCancel       Permission = "sales_cancel"
)

var allPermissions = []Permission{
	PermDashboard,
	PermProducts,
	PermCategories,
	PermExhibitions,
	PermPOS,
	PermReports,
	PermDayEndClose,
	PermExhibitionClosure,
	PermUserManagement,
	PermPriceOverride,
	PermSalesCancel,
}

// AllPermissions lists the fixed capability set.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ParsePermission validates a raw permission name.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(strings.TrimSpace(strings.ToLower(raw)))
	for _, known := range allPermissions {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown permission %q", httpx.ErrValidation, raw)
}

// ParsePermissions validates and de-duplicates raw permission names.
func ParsePermissions(raw []string) ([]Permission, error) {
	set := make(PermissionSet, len(raw))
	for _, r := range raw {
		p, err := ParsePermission(r)
		if err != nil {
			return nil, err
		}
		set[p] = struct{}{}
	}
	return set.Sorted(), nil
}

// Role is a named bundle of default permissions.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleCashier    Role = "cashier"
	RoleInventory  Role = "inventory"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleDefaults[r]
	return ok || r == RoleSuperAdmin
}

var roleDefaults = map[Role][]Permission{
	RoleAdmin: {
		PermDashboard, PermProducts, PermCategories, PermExhibitions, PermPOS,
		PermReports, PermDayEndClose, PermExhibitionClosure, PermPriceOverride, PermSalesCancel,
	},
	RoleCashier:   {PermDashboard, PermPOS},
	RoleInventory: {PermDashboard, PermProducts, PermCategories, PermExhibitions},
}

// RoleDefaults returns the permissions a role grants without explicit grants.
func RoleDefaults(r Role) []Permission {
	if r == RoleSuperAdmin {
		return AllPermissions()
	}
	defaults := roleDefaults[r]
	out := make([]Permission, len(defaults))
	copy(out, defaults)
	return out
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

// Effective unions the role defaults with explicit grants.
func Effective(role Role, granted []Permission) PermissionSet {
	set := make(PermissionSet)
	for _, p := range RoleDefaults(role) {
		set[p] = struct{}{}
	}
	for _, p := range granted {
		set[p] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the set as a sorted slice.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Principal describes the authenticated actor.
type Principal struct {
	UserID      uuid.UUID
	Username    string
	FullName    string
	Role        Role
	Active      bool
	Permissions PermissionSet
}

// Can reports whether the principal holds p.
func (p Principal) Can(perm Permission) bool {
	if p.Role == RoleSuperAdmin {
		return true
	}
	return p.Permissions.Has(perm)
}

// CanAny reports whether the principal holds at least one of perms.
func (p Principal) CanAny(perms ...Permission) bool {
	if len(perms) == 0 {
		return true
	}
	for _, perm := range perms {
		if p.Can(perm) {
			return true
		}
	}
	return false
}

// CanAll reports whether the principal holds every one of perms.
func (p Principal) CanAll(perms ...Permission) bool {
	for _, perm := range perms {
		if !p.Can(perm) {
			return false
		}
	}
	return true
}
