package assignmentlog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/buildings/{id}/assignment-logs", s.ListAssignmentLogs)
}

type ListResponse struct {
	Logs   []*Entry `json:"logs"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

func (s *Server) ListAssignmentLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if limit == 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	logs, total, err := s.repo.List(ctx, chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if logs == nil {
		logs = []*Entry{}
	}
	cerr.SetJSONResponse(ctx, &ListResponse{
		Logs:   logs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, cerr.NewError(cerr.InvalidArgument, name+" must be a non-negative integer", err)
	}
	return n, nil
}
