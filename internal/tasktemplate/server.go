package tasktemplate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/cache"
	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

// StatsCacheKey holds the cached response of the template statistics endpoint.
const StatsCacheKey = "task_templates:stats"

type Server struct {
	repo     Repository
	cache    *cache.Cache
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, c *cache.Cache, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:     repo,
		cache:    c,
		eventBus: eventBus,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/task-templates", s.ListTemplates)
	r.Post("/task-templates", s.CreateTemplate)
	r.Get("/task-templates/{id}", s.GetTemplate)
	r.Put("/task-templates/{id}", s.UpdateTemplate)
	r.Delete("/task-templates/{id}", s.DeleteTemplate)
	r.Get("/task-templates/{id}/status", s.GetTemplateStatus)
	r.Get("/tasks/templates/stats", s.GetTemplateStats)
}

func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		ManagerType: ManagerType(q.Get("managerType")),
		Category:    Category(q.Get("category")),
		Search:      strings.TrimSpace(q.Get("search")),
	}
	if filter.ManagerType != "" && !filter.ManagerType.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown manager type %q", filter.ManagerType), nil)
		return
	}
	if filter.Category != "" && !filter.Category.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown category %q", filter.Category), nil)
		return
	}
	templates, err := s.repo.List(ctx, filter)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if templates == nil {
		templates = []*Template{}
	}
	cerr.SetJSONResponse(ctx, templates)
}

func (s *Server) GetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

type CreateRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    Priority    `json:"priority"`
	ManagerType ManagerType `json:"managerType"`
	Category    Category    `json:"category"`
}

func (s *Server) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageTemplates); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req CreateRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Title == "" || req.Description == "" || req.Category == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "title, description and category are required", nil)
		return
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if req.ManagerType == "" {
		req.ManagerType = ManagerTypeAdmin
	}
	now := time.Now()
	t := &Template{
		ID:          ulid.Make().String(),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		ManagerType: req.ManagerType,
		Category:    req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validate(t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.EventTaskTemplateChanged, t.ID, map[string]string{"action": "created"})
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, t)
}

type UpdateRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Priority    *Priority    `json:"priority"`
	ManagerType *ManagerType `json:"managerType"`
	Category    *Category    `json:"category"`
}

func (s *Server) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageTemplates); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req UpdateRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.ManagerType != nil {
		t.ManagerType = *req.ManagerType
	}
	if req.Category != nil {
		t.Category = *req.Category
	}
	if err := validate(t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.EventTaskTemplateChanged, t.ID, map[string]string{"action": "updated"})
	cerr.SetJSONResponse(ctx, t)
}

func validate(t *Template) error {
	switch {
	case t.Title == "" || t.Description == "":
		return cerr.NewError(cerr.InvalidArgument, "title and description must not be empty", nil)
	case !t.Priority.Valid():
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", t.Priority), nil)
	case !t.ManagerType.Valid():
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown manager type %q", t.ManagerType), nil)
	case !t.Category.Valid():
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown category %q", t.Category), nil)
	}
	return nil
}

type DeleteResponse struct {
	Message string `json:"message"`
}

func (s *Server) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageTemplates); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.repo.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	count, err := s.repo.CountTasks(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if count > 0 {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "template is used by existing tasks", nil).
			WithDetail("tasksCount", count))
		return
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.EventTaskTemplateChanged, id, map[string]string{"action": "deleted"})
	cerr.SetJSONResponse(ctx, &DeleteResponse{Message: "task template deleted"})
}

type StatusResponse struct {
	Template  *Template         `json:"template"`
	Buildings []*BuildingStatus `json:"buildings"`
}

func (s *Server) GetTemplateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	buildings, err := s.repo.BuildingStatus(ctx, t.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if buildings == nil {
		buildings = []*BuildingStatus{}
	}
	cerr.SetJSONResponse(ctx, &StatusResponse{Template: t, Buildings: buildings})
}

func (s *Server) GetTemplateStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	stats, err := cache.Remember(ctx, s.cache, StatsCacheKey, func(ctx context.Context) ([]*Stats, error) {
		stats, err := s.repo.Stats(ctx)
		if stats == nil && err == nil {
			stats = []*Stats{}
		}
		return stats, err
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, stats)
}
