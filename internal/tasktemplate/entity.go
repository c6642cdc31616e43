package tasktemplate

import "time"

// ManagerType routes tasks of a template to a building's responsible users.
type ManagerType string

const (
	ManagerTypeAdmin ManagerType = "ADMIN"
	ManagerTypeBiz   ManagerType = "BIZ"
	ManagerTypeBoth  ManagerType = "BOTH"
)

func (m ManagerType) Valid() bool {
	switch m {
	case ManagerTypeAdmin, ManagerTypeBiz, ManagerTypeBoth:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Category string

const (
	CategoryInspection  Category = "INSPECTION"
	CategoryMaintenance Category = "MAINTENANCE"
	CategorySecurity    Category = "SECURITY"
	CategoryCleaning    Category = "CLEANING"
	CategoryContract    Category = "CONTRACT"
	CategoryFinancial   Category = "FINANCIAL"
	CategoryTenant      Category = "TENANT"
	CategoryFacility    Category = "FACILITY"
	CategoryOther       Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryInspection, CategoryMaintenance, CategorySecurity, CategoryCleaning, CategoryContract,
		CategoryFinancial, CategoryTenant, CategoryFacility, CategoryOther:
		return true
	}
	return false
}

type Template struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    Priority    `json:"priority"`
	ManagerType ManagerType `json:"managerType"`
	Category    Category    `json:"category"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type ListFilter struct {
	ManagerType ManagerType
	Category    Category
	Search      string
}

// Stats is a template with its task counts.
type Stats struct {
	*Template
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
}

type TaskStats struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"inProgress"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completionRate"`
}

type LatestTask struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// BuildingStatus summarizes one building's tasks created from a template.
type BuildingStatus struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Address    string      `json:"address"`
	ImageURL   *string     `json:"imageUrl"`
	TaskStats  TaskStats   `json:"taskStats"`
	LatestTask *LatestTask `json:"latestTask"`
}
