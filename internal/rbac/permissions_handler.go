package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

// PermissionsHandler exposes the fixed capability catalogue.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(PermUserManagement))
		r.Get("/", h.listPermissions)
	})
}

type roleDefaultsView struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	roles := []Role{RoleSuperAdmin, RoleAdmin, RoleCashier, RoleInventory}
	views := make([]roleDefaultsView, 0, len(roles))
	for _, role := range roles {
		views = append(views, roleDefaultsView{Role: role, Permissions: RoleDefaults(role)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permissions": AllPermissions(),
		"roles":       views,
	})
}
