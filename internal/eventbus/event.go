package eventbus

import "time"

type EventType string

const (
	EventBuildingResponsiblesUpdated EventType = "building.responsibles_updated"
	EventBuildingDeleted             EventType = "building.deleted"
	EventTaskReassigned              EventType = "task.reassigned"
	EventTaskCreated                 EventType = "task.created"
	EventTaskUpdated                 EventType = "task.updated"
	EventTaskDeleted                 EventType = "task.deleted"
	EventTaskCompleted               EventType = "task.completed"
	EventTaskTemplateChanged         EventType = "task_template.changed"
)

type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	ResourceID string            `json:"resourceId"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}
