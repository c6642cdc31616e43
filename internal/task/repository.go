package task

import "context"

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	GetDetail(ctx context.Context, id string) (*Detail, error)
	// List returns tasks newest first.
	List(ctx context.Context, filter ListFilter) ([]*Detail, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error

	GetReport(ctx context.Context, taskID string) (*CompletionReport, error)
	// Complete marks the task completed and stores its report atomically.
	Complete(ctx context.Context, report *CompletionReport) (*Task, error)
	UpdateReport(ctx context.Context, report *CompletionReport) error

	// Reassign moves every task matching filter and returns how many changed.
	Reassign(ctx context.Context, filter ReassignFilter) (int64, error)
}
