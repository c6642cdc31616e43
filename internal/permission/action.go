package permission

type Action int

const (
	ActionViewResources Action = iota + 1
	ActionManageBuildings
	ActionAssignResponsibles
	ActionManageTemplates
	ActionManageTasks
	ActionListUsers
	ActionSearchUsers
	ActionRegisterPrivileged
)

var actionNames = map[Action]string{
	ActionViewResources:      "view_resources",
	ActionManageBuildings:    "manage_buildings",
	ActionAssignResponsibles: "assign_responsibles",
	ActionManageTemplates:    "manage_templates",
	ActionManageTasks:        "manage_tasks",
	ActionListUsers:          "list_users",
	ActionSearchUsers:        "search_users",
	ActionRegisterPrivileged: "register_privileged",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

var grants = map[Role][]Action{
	RoleSuperAdmin: {
		ActionViewResources, ActionManageBuildings, ActionAssignResponsibles, ActionManageTemplates,
		ActionManageTasks, ActionListUsers, ActionSearchUsers, ActionRegisterPrivileged,
	},
	RoleBuildingAdmin: {
		ActionViewResources, ActionManageBuildings, ActionAssignResponsibles, ActionManageTemplates,
		ActionManageTasks, ActionListUsers, ActionSearchUsers,
	},
	RoleAdminManager:    {ActionViewResources, ActionManageTasks, ActionListUsers},
	RoleBizManager:      {ActionViewResources, ActionManageTasks, ActionListUsers},
	RoleBuildingManager: {ActionViewResources, ActionManageTasks},
	RoleUser:            {ActionViewResources},
}

// IsAuthorizedFor reports whether role may perform action. Unknown roles may do nothing.
func IsAuthorizedFor(role Role, action Action) bool {
	for _, a := range grants[role] {
		if a == action {
			return true
		}
	}
	return false
}
