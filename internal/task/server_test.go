package task

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

type memoryRepository struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	reports map[string]*CompletionReport
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		tasks:   make(map[string]*Task),
		reports: make(map[string]*CompletionReport),
	}
}

func taskNotFound() error {
	return cerr.NewError(cerr.NotFound, "task not found", nil)
}

func (m *memoryRepository) Create(_ context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memoryRepository) Get(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, taskNotFound()
	}
	cp := *t
	return &cp, nil
}

func (m *memoryRepository) GetDetail(ctx context.Context, id string) (*Detail, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Detail{Task: t, CompletionReport: m.reports[id]}, nil
}

func (m *memoryRepository) List(_ context.Context, filter ListFilter) ([]*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Detail
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, &Detail{Task: t})
	}
	return out, nil
}

func (m *memoryRepository) Update(ctx context.Context, t *Task) error {
	if _, err := m.Get(ctx, t.ID); err != nil {
		return err
	}
	return m.Create(ctx, t)
}

func (m *memoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return taskNotFound()
	}
	delete(m.tasks, id)
	delete(m.reports, id)
	return nil
}

func (m *memoryRepository) GetReport(_ context.Context, taskID string) (*CompletionReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[taskID]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "completion report not found", nil)
	}
	cp := *r
	return &cp, nil
}

func (m *memoryRepository) Complete(_ context.Context, report *CompletionReport) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[report.TaskID]
	if !ok {
		return nil, taskNotFound()
	}
	at := report.CreatedAt
	t.Status = StatusCompleted
	t.CompletedAt = &at
	m.reports[report.TaskID] = report
	cp := *t
	return &cp, nil
}

func (m *memoryRepository) UpdateReport(_ context.Context, report *CompletionReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[report.TaskID] = report
	return nil
}

func (m *memoryRepository) Reassign(context.Context, ReassignFilter) (int64, error) {
	return 0, nil
}

type stubBuildings struct {
	building.Repository
	ids map[string]bool
}

func (s stubBuildings) Get(_ context.Context, id string) (*building.Building, error) {
	if !s.ids[id] {
		return nil, cerr.NewError(cerr.NotFound, "building not found", nil)
	}
	return &building.Building{ID: id}, nil
}

type stubTemplates struct {
	tasktemplate.Repository
	ids map[string]bool
}

func (s stubTemplates) Get(_ context.Context, id string) (*tasktemplate.Template, error) {
	if !s.ids[id] {
		return nil, cerr.NewError(cerr.NotFound, "task template not found", nil)
	}
	return &tasktemplate.Template{ID: id}, nil
}

type testEnv struct {
	router http.Handler
	repo   *memoryRepository
	bus    *eventbus.Bus
}

func newTestEnv() *testEnv {
	repo := newMemoryRepository()
	bus := eventbus.New()
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	NewServer(repo,
		stubBuildings{ids: map[string]bool{"b1": true}},
		stubTemplates{ids: map[string]bool{"tt1": true}},
		bus,
	).Routes(r)
	return &testEnv{router: r, repo: repo, bus: bus}
}

func (e *testEnv) do(role permission.Role, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if role != "" {
		req = req.WithContext(permission.ContextWithPrincipal(req.Context(), &permission.Principal{UserID: "caller", Role: role}))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seed(t *testing.T, id string, status Status) {
	t.Helper()
	require.NoError(t, e.repo.Create(context.Background(), &Task{ID: id, Status: status, BuildingID: "b1", TemplateID: "tt1"}))
}

func TestCreateTask(t *testing.T) {
	e := newTestEnv()
	_, events := e.bus.Subscribe(1)

	rec := e.do(permission.RoleBuildingManager, http.MethodPost, "/tasks", `{"buildingId":"b1","templateId":"tt1","assigneeId":"u7"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var d Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, StatusPending, d.Status)
	require.NotNil(t, d.CreatorID)
	assert.Equal(t, "caller", *d.CreatorID)

	ev := <-events
	assert.Equal(t, eventbus.EventTaskCreated, ev.Type)
	assert.Equal(t, "u7", ev.Metadata["assignee_id"])
}

func TestCreateTask_Errors(t *testing.T) {
	e := newTestEnv()
	tests := []struct {
		name string
		role permission.Role
		body string
		want int
	}{
		{"missing ids", permission.RoleSuperAdmin, `{"buildingId":"b1"}`, http.StatusBadRequest},
		{"unknown building", permission.RoleSuperAdmin, `{"buildingId":"nope","templateId":"tt1"}`, http.StatusBadRequest},
		{"unknown template", permission.RoleSuperAdmin, `{"buildingId":"b1","templateId":"nope"}`, http.StatusBadRequest},
		{"viewer", permission.RoleUser, `{"buildingId":"b1","templateId":"tt1"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.do(tt.role, http.MethodPost, "/tasks", tt.body).Code)
		})
	}
}

func TestUpdateTask(t *testing.T) {
	e := newTestEnv()
	e.seed(t, "t1", StatusPending)
	ctx := context.Background()

	rec := e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/t1", `{"status":"IN_PROGRESS","assigneeId":"u2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, err := e.repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
	require.NotNil(t, got.AssigneeID)
	assert.Equal(t, "u2", *got.AssigneeID)

	// absent assignee is kept, explicit null clears it
	rec = e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/t1", `{"status":"DELAYED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ = e.repo.Get(ctx, "t1")
	require.NotNil(t, got.AssigneeID)
	rec = e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/t1", `{"assigneeId":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ = e.repo.Get(ctx, "t1")
	assert.Nil(t, got.AssigneeID)

	rec = e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/t1", `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ = e.repo.Get(ctx, "t1")
	require.NotNil(t, got.CompletedAt)
	completedAt := *got.CompletedAt

	time.Sleep(time.Millisecond)
	rec = e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/t1", `{"status":"COMPLETED","assigneeId":"u3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ = e.repo.Get(ctx, "t1")
	assert.True(t, completedAt.Equal(*got.CompletedAt))

	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/t1", `{"status":"PENDING"}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/t1", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, e.do(permission.RoleBuildingManager, http.MethodPut, "/tasks/none", `{}`).Code)
}

func TestUpdateTask_InvalidStatus(t *testing.T) {
	e := newTestEnv()
	e.seed(t, "t1", StatusPending)
	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleSuperAdmin, http.MethodPut, "/tasks/t1", `{"status":"DONE"}`).Code)
}

func TestDeleteTask(t *testing.T) {
	e := newTestEnv()
	e.seed(t, "open", StatusPending)
	e.seed(t, "done", StatusCompleted)

	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleSuperAdmin, http.MethodDelete, "/tasks/done", "").Code)
	assert.Equal(t, http.StatusOK, e.do(permission.RoleSuperAdmin, http.MethodDelete, "/tasks/open", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(permission.RoleSuperAdmin, http.MethodDelete, "/tasks/open", "").Code)
}

func TestCompleteTask(t *testing.T) {
	e := newTestEnv()
	e.seed(t, "t1", StatusInProgress)

	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleBizManager, http.MethodPost, "/tasks/t1/complete", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleBizManager, http.MethodPut, "/tasks/t1/complete", `{"content":"x"}`).Code)

	rec := e.do(permission.RoleBizManager, http.MethodPost, "/tasks/t1/complete", `{"content":"checked all floors"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CompleteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusCompleted, resp.Task.Status)
	assert.Equal(t, "checked all floors", resp.Report.Content)

	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleBizManager, http.MethodPost, "/tasks/t1/complete", `{"content":"again"}`).Code)

	rec = e.do(permission.RoleBizManager, http.MethodPut, "/tasks/t1/complete", `{"content":"revised"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	report, err := e.repo.GetReport(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "revised", report.Content)

	assert.Equal(t, http.StatusNotFound, e.do(permission.RoleBizManager, http.MethodPost, "/tasks/none/complete", `{"content":"x"}`).Code)
}

func TestListTasks(t *testing.T) {
	e := newTestEnv()
	e.seed(t, "t1", StatusPending)
	e.seed(t, "t2", StatusCompleted)

	rec := e.do(permission.RoleUser, http.MethodGet, "/tasks?status=COMPLETED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "t2", list[0].ID)

	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleUser, http.MethodGet, "/tasks?status=DONE", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(permission.RoleUser, http.MethodGet, "/tasks?managerType=X", "").Code)
	assert.Equal(t, http.StatusOK, e.do(permission.RoleUser, http.MethodGet, "/tasks/t1", "").Code)
}

func TestOptional(t *testing.T) {
	var req UpdateRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	assert.False(t, req.AssigneeID.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"assigneeId":null}`), &req))
	assert.True(t, req.AssigneeID.Set)
	assert.Nil(t, req.AssigneeID.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"assigneeId":"u1"}`), &req))
	require.NotNil(t, req.AssigneeID.Value)
	assert.Equal(t, "u1", *req.AssigneeID.Value)
}
