package permission

import "fmt"

type Role string

const (
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RoleBuildingAdmin   Role = "BUILDING_ADMIN"
	RoleAdminManager    Role = "ADMIN_MANAGER"
	RoleBizManager      Role = "BIZ_MANAGER"
	RoleBuildingManager Role = "BUILDING_MANAGER"
	RoleUser            Role = "USER"
)

var roles = []Role{
	RoleSuperAdmin,
	RoleBuildingAdmin,
	RoleAdminManager,
	RoleBizManager,
	RoleBuildingManager,
	RoleUser,
}

// StaffRoles are the roles listed in the staff directory.
var StaffRoles = []Role{
	RoleBuildingAdmin,
	RoleAdminManager,
	RoleBizManager,
	RoleBuildingManager,
}

func ParseRole(s string) (Role, error) {
	for _, r := range roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) IsStaff() bool {
	for _, s := range StaffRoles {
		if r == s {
			return true
		}
	}
	return false
}

// CanBeAdminManager reports whether a user with this role may hold a
// building's admin responsibility.
func (r Role) CanBeAdminManager() bool {
	switch r {
	case RoleAdminManager, RoleBuildingAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// CanBeBizManager reports whether a user with this role may hold a
// building's business responsibility.
func (r Role) CanBeBizManager() bool {
	switch r {
	case RoleBizManager, RoleBuildingAdmin, RoleSuperAdmin:
		return true
	}
	return false
}
