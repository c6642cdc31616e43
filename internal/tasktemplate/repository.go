package tasktemplate

import "context"

type Repository interface {
	Create(ctx context.Context, t *Template) error
	Get(ctx context.Context, id string) (*Template, error)
	// List returns templates newest first.
	List(ctx context.Context, filter ListFilter) ([]*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id string) error
	CountTasks(ctx context.Context, id string) (int, error)
	Stats(ctx context.Context) ([]*Stats, error)
	// BuildingStatus covers only buildings that have at least one task from the template.
	BuildingStatus(ctx context.Context, id string) ([]*BuildingStatus, error)
}
