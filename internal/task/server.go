package task

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

type Server struct {
	repo         Repository
	buildingRepo building.Repository
	templateRepo tasktemplate.Repository
	eventBus     *eventbus.Bus
}

func NewServer(repo Repository, buildingRepo building.Repository, templateRepo tasktemplate.Repository, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:         repo,
		buildingRepo: buildingRepo,
		templateRepo: templateRepo,
		eventBus:     eventBus,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/tasks", s.ListTasks)
	r.Post("/tasks", s.CreateTask)
	r.Get("/tasks/{id}", s.GetTask)
	r.Put("/tasks/{id}", s.UpdateTask)
	r.Delete("/tasks/{id}", s.DeleteTask)
	r.Post("/tasks/{id}/complete", s.CompleteTask)
	r.Put("/tasks/{id}/complete", s.UpdateCompletionReport)
}

func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		BuildingID:  q.Get("buildingId"),
		Status:      Status(q.Get("status")),
		AssigneeID:  q.Get("assigneeId"),
		TemplateID:  q.Get("templateId"),
		ManagerType: tasktemplate.ManagerType(q.Get("managerType")),
		Search:      strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown task status %q", filter.Status), nil)
		return
	}
	if filter.ManagerType != "" && !filter.ManagerType.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown manager type %q", filter.ManagerType), nil)
		return
	}
	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []*Detail{}
	}
	cerr.SetJSONResponse(ctx, tasks)
}

func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	d, err := s.repo.GetDetail(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, d)
}

type CreateRequest struct {
	BuildingID string     `json:"buildingId"`
	TemplateID string     `json:"templateId"`
	DueDate    *time.Time `json:"dueDate"`
	CreatorID  *string    `json:"creatorId"`
	AssigneeID *string    `json:"assigneeId"`
}

func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := permission.Authorize(ctx, permission.ActionManageTasks)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req CreateRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.BuildingID == "" || req.TemplateID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "buildingId and templateId are required", nil)
		return
	}
	if _, err := s.buildingRepo.Get(ctx, req.BuildingID); err != nil {
		cerr.SetJSONError(ctx, asInvalidReference(err, "building does not exist"))
		return
	}
	if _, err := s.templateRepo.Get(ctx, req.TemplateID); err != nil {
		cerr.SetJSONError(ctx, asInvalidReference(err, "task template does not exist"))
		return
	}
	creatorID := req.CreatorID
	if creatorID == nil || *creatorID == "" {
		creatorID = &p.UserID
	}
	assigneeID := req.AssigneeID
	if assigneeID != nil && *assigneeID == "" {
		assigneeID = nil
	}

	now := time.Now()
	t := &Task{
		ID:         ulid.Make().String(),
		Status:     StatusPending,
		DueDate:    req.DueDate,
		BuildingID: req.BuildingID,
		TemplateID: req.TemplateID,
		CreatorID:  creatorID,
		AssigneeID: assigneeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.EventTaskCreated, t.ID, taskMetadata(t))

	d, err := s.repo.GetDetail(ctx, t.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, d)
}

// asInvalidReference reports a missing referenced record as a bad request.
func asInvalidReference(err error, msg string) error {
	if cerr.IsCode(err, cerr.NotFound) {
		return cerr.NewError(cerr.InvalidArgument, msg, err)
	}
	return err
}

type UpdateRequest struct {
	Status     *Status          `json:"status"`
	AssigneeID Optional[string] `json:"assigneeId"`
	DueDate    *time.Time       `json:"dueDate"`
}

func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageTasks); err != nil {
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
	if t.Status == StatusCompleted && (req.Status == nil || *req.Status != StatusCompleted) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "a completed task cannot be modified", nil)
		return
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown task status %q", *req.Status), nil)
			return
		}
		t.Status = *req.Status
	}
	previousAssignee := t.AssigneeID
	if req.AssigneeID.Set {
		t.AssigneeID = req.AssigneeID.Value
		if t.AssigneeID != nil && *t.AssigneeID == "" {
			t.AssigneeID = nil
		}
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	now := time.Now()
	if t.Status == StatusCompleted && t.CompletedAt == nil {
		t.CompletedAt = &now
	}
	t.UpdatedAt = now
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	meta := taskMetadata(t)
	if !sameAssignee(previousAssignee, t.AssigneeID) {
		meta["assignee_changed"] = "true"
	}
	s.eventBus.PublishNew(eventbus.EventTaskUpdated, t.ID, meta)

	d, err := s.repo.GetDetail(ctx, t.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, d)
}

type DeleteResponse struct {
	Message string `json:"message"`
}

func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageTasks); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if t.Status == StatusCompleted {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "a completed task cannot be deleted", nil)
		return
	}
	if err := s.repo.Delete(ctx, t.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.EventTaskDeleted, t.ID, taskMetadata(t))
	cerr.SetJSONResponse(ctx, &DeleteResponse{Message: "task deleted"})
}

type CompleteRequest struct {
	Content   string `json:"content"`
	ImageURLs string `json:"imageUrls"`
	TimeSpent int    `json:"timeSpent"`
}

type CompleteResponse struct {
	Task   *Task             `json:"task"`
	Report *CompletionReport `json:"report"`
}

func (s *Server) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageTasks); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req CompleteRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "content is required", nil)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if _, err := s.repo.GetReport(ctx, t.ID); err == nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "a completion report was already submitted", nil)
		return
	} else if !cerr.IsCode(err, cerr.NotFound) {
		cerr.SetJSONError(ctx, err)
		return
	}

	now := time.Now()
	report := &CompletionReport{
		ID:        ulid.Make().String(),
		TaskID:    t.ID,
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
		TimeSpent: req.TimeSpent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	completed, err := s.repo.Complete(ctx, report)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.EventTaskCompleted, completed.ID, taskMetadata(completed))
	cerr.SetJSONResponse(ctx, &CompleteResponse{Task: completed, Report: report})
}

type UpdateReportRequest struct {
	Content string `json:"content"`
}

func (s *Server) UpdateCompletionReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageTasks); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req UpdateReportRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "content is required", nil)
		return
	}
	t, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	report, err := s.repo.GetReport(ctx, t.ID)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "no completion report exists for this task", nil)
			return
		}
		cerr.SetJSONError(ctx, err)
		return
	}
	report.Content = req.Content
	report.UpdatedAt = time.Now()
	if err := s.repo.UpdateReport(ctx, report); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, report)
}

func taskMetadata(t *Task) map[string]string {
	meta := map[string]string{
		"building_id": t.BuildingID,
		"template_id": t.TemplateID,
		"status":      string(t.Status),
	}
	if t.AssigneeID != nil {
		meta["assignee_id"] = *t.AssigneeID
	}
	return meta
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
