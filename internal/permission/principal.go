package permission

import (
	"context"
	"fmt"

	"github.com/kazz187/buildingdesk/pkg/cerr"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   Role
}

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Authorize returns the caller when it may perform action.
func Authorize(ctx context.Context, action Action) (*Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, cerr.NewError(cerr.Unauthenticated, "authentication required", nil)
	}
	if !IsAuthorizedFor(p.Role, action) {
		return nil, cerr.NewError(cerr.PermissionDenied, "permission denied",
			fmt.Errorf("role %s may not %s", p.Role, action))
	}
	return p, nil
}
