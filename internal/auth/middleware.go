package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/pkg/cerr"
	"github.com/kazz187/buildingdesk/pkg/clog"
)

// Middleware attaches the bearer token's principal to the request context.
// Requests without a token continue anonymously; handlers decide through
// permission.Authorize. A malformed or expired token is rejected here.
// It must run inside cerr.NewJSONResponseChiMiddleware.
func Middleware(m *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				cerr.SetNewJSONError(ctx, cerr.Unauthenticated, "invalid authorization header", nil)
				return
			}
			claims, err := m.Validate(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "token has expired"
				}
				cerr.SetNewJSONError(ctx, cerr.Unauthenticated, msg, err)
				return
			}
			clog.AddUserID(ctx, claims.UserID)
			next.ServeHTTP(w, r.WithContext(permission.ContextWithPrincipal(ctx, claims.Principal())))
		})
	}
}
