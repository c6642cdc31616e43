package task

import (
	"time"

	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/internal/user"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDelayed    Status = "DELAYED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled, StatusDelayed:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
	BuildingID  string     `json:"buildingId"`
	TemplateID  string     `json:"templateId"`
	CreatorID   *string    `json:"creatorId"`
	AssigneeID  *string    `json:"assigneeId"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type CompletionReport struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Content   string    `json:"content"`
	ImageURLs string    `json:"imageUrls"`
	TimeSpent int       `json:"timeSpent"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BuildingRef is the slice of a building shown alongside its tasks.
type BuildingRef struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	ImageURL     *string       `json:"imageUrl"`
	AdminManager *user.Summary `json:"adminManager"`
	BizManager   *user.Summary `json:"bizManager"`
}

type Detail struct {
	*Task
	Template         *tasktemplate.Template `json:"template"`
	Building         *BuildingRef           `json:"building"`
	Assignee         *user.Summary          `json:"assignee"`
	Creator          *user.Summary          `json:"creator"`
	CompletionReport *CompletionReport      `json:"completionReport"`
}

type ListFilter struct {
	BuildingID  string
	Status      Status
	AssigneeID  string
	TemplateID  string
	ManagerType tasktemplate.ManagerType
	Search      string
}

// ReassignFilter selects the tasks of one building whose template has
// ManagerType and whose assignee is FromAssignee. A nil FromAssignee matches
// unassigned tasks. Matched tasks are moved to ToAssignee, which may be nil.
type ReassignFilter struct {
	BuildingID   string
	ManagerType  tasktemplate.ManagerType
	FromAssignee *string
	ToAssignee   *string
}
