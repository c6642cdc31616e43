package user

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

const (
	searchMinLength = 2
	searchLimit     = 10
)

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/users", s.ListUsers)
	r.Get("/users/search", s.SearchUsers)
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionListUsers); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	users, err := s.repo.ListStaff(ctx, permission.Role(r.URL.Query().Get("role")))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, nonNil(users))
}

type searchResponse struct {
	Users []*Summary `json:"users"`
}

func (s *Server) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionSearchUsers); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(q) < searchMinLength {
		cerr.SetJSONResponse(ctx, &searchResponse{Users: []*Summary{}})
		return
	}
	users, err := s.repo.SearchStaff(ctx, q, searchLimit)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &searchResponse{Users: nonNil(users)})
}

func nonNil(users []*Summary) []*Summary {
	if users == nil {
		return []*Summary{}
	}
	return users
}
