package assignmentlog

import "time"

type Kind string

const (
	KindResponsiblesUpdated Kind = "responsibles_updated"
	KindTasksReassigned     Kind = "tasks_reassigned"
)

// Entry is one audit record of a building's responsibility history.
type Entry struct {
	ID         string            `yaml:"id" json:"id"`
	BuildingID string            `yaml:"building_id" json:"buildingId"`
	Kind       Kind              `yaml:"kind" json:"kind"`
	ActorID    string            `yaml:"actor_id,omitempty" json:"actorId,omitempty"`
	Message    string            `yaml:"message" json:"message"`
	Metadata   map[string]string `yaml:"metadata" json:"metadata"`
	CreatedAt  time.Time         `yaml:"created_at" json:"createdAt"`
}
