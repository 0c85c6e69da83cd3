package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleSuperAdmin  = "super_admin"
	RoleAdmin       = "admin"
	RoleClientAdmin = "client_admin"
	RoleClientUser  = "client_user"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsAdmin reports platform-level administrators that may see every tenant.
func IsAdmin(role string) bool { return role == RoleSuperAdmin || role == RoleAdmin }

func IsClientRole(role string) bool { return role == RoleClientAdmin || role == RoleClientUser }
