package building

import "context"

type Repository interface {
	// Create inserts b and links managerIDs as its general managers.
	Create(ctx context.Context, b *Building, managerIDs []string) error
	Get(ctx context.Context, id string) (*Building, error)
	GetDetail(ctx context.Context, id string) (*Detail, error)
	List(ctx context.Context, filter ListFilter) ([]*Detail, error)
	// Update writes the descriptive fields of b and, when managerIDs is
	// non-nil, replaces the general managers in the same transaction.
	// Responsible users are not touched.
	Update(ctx context.Context, b *Building, managerIDs []string) error
	Delete(ctx context.Context, id string) error
	ReplaceManagers(ctx context.Context, id string, userIDs []string) error

	// GetForUpdate reads the building and locks its row until the surrounding
	// transaction ends. Outside a transaction the lock is released immediately.
	GetForUpdate(ctx context.Context, id string) (*Building, error)
	SetResponsibles(ctx context.Context, id string, adminManagerID, bizManagerID *string) error
}
