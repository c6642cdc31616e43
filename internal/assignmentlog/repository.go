package assignmentlog

import "context"

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	// List returns the building's entries newest first, and the total count.
	List(ctx context.Context, buildingID string, limit, offset int) ([]*Entry, int, error)
}
