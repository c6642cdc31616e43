package user

import (
	"context"

	"github.com/kazz187/buildingdesk/internal/permission"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetSummaries returns the users among ids that exist, in no particular order.
	GetSummaries(ctx context.Context, ids []string) ([]*Summary, error)
	// ListStaff returns staff users ordered by name. An empty or non-staff role lists every staff role.
	ListStaff(ctx context.Context, role permission.Role) ([]*Summary, error)
	// SearchStaff matches q against name or email, case-insensitively.
	SearchStaff(ctx context.Context, q string, limit int) ([]*Summary, error)
}
