package pushnotification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/config"
	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/pushsubscription"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

type memorySubscriptions struct {
	mu   sync.Mutex
	subs map[string]*pushsubscription.Subscription
}

func newMemorySubscriptions(subs ...*pushsubscription.Subscription) *memorySubscriptions {
	m := &memorySubscriptions{subs: make(map[string]*pushsubscription.Subscription)}
	for _, s := range subs {
		m.subs[s.ID] = s
	}
	return m
}

func (m *memorySubscriptions) Save(_ context.Context, s *pushsubscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *memorySubscriptions) Get(_ context.Context, id string) (*pushsubscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	}
	return s, nil
}

func (m *memorySubscriptions) ListByUser(_ context.Context, userID string) ([]*pushsubscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*pushsubscription.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memorySubscriptions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	}
	delete(m.subs, id)
	return nil
}

func (m *memorySubscriptions) FindByEndpoint(_ context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.Endpoint == endpoint {
			cp := *s
			return &cp, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "push subscription not found", nil)
}

var testVAPID = &config.VAPIDEnv{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", VAPIDContact: "mailto:ops@example.com"}

func newTestSender(repo pushsubscription.Repository, status func(endpoint string) (int, error)) (*Sender, *[]string) {
	var calls []string
	s := NewSender(testVAPID, repo)
	s.push = func(_ context.Context, message []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error) {
		calls = append(calls, sub.Endpoint)
		code, err := status(sub.Endpoint)
		if err != nil {
			return nil, err
		}
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return s, &calls
}

func TestSender_SendToUser(t *testing.T) {
	repo := newMemorySubscriptions(
		&pushsubscription.Subscription{ID: "ok", UserID: "u1", Endpoint: "https://push/ok"},
		&pushsubscription.Subscription{ID: "gone", UserID: "u1", Endpoint: "https://push/gone"},
		&pushsubscription.Subscription{ID: "other", UserID: "u2", Endpoint: "https://push/other"},
	)
	s, calls := newTestSender(repo, func(endpoint string) (int, error) {
		if endpoint == "https://push/gone" {
			return http.StatusGone, nil
		}
		return http.StatusCreated, nil
	})

	sent := s.SendToUser(context.Background(), "u1", &NotificationPayload{Title: "hi"})
	assert.Equal(t, 1, sent)
	assert.ElementsMatch(t, []string{"https://push/ok", "https://push/gone"}, *calls)

	_, err := repo.Get(context.Background(), "gone")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	_, err = repo.Get(context.Background(), "ok")
	assert.NoError(t, err)
}

func TestSender_Disabled(t *testing.T) {
	repo := newMemorySubscriptions(&pushsubscription.Subscription{ID: "ok", UserID: "u1", Endpoint: "https://push/ok"})
	s := NewSender(&config.VAPIDEnv{}, repo)
	s.push = func(context.Context, []byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		t.Fatal("push must not be called without VAPID keys")
		return nil, nil
	}
	assert.False(t, s.Enabled())
	assert.Zero(t, s.SendToUser(context.Background(), "u1", &NotificationPayload{}))
}

func TestSender_BreakerOpensOnFailures(t *testing.T) {
	repo := newMemorySubscriptions(&pushsubscription.Subscription{ID: "s", UserID: "u1", Endpoint: "https://push/down"})
	s, calls := newTestSender(repo, func(string) (int, error) {
		return 0, errors.New("connection refused")
	})

	for range 6 {
		assert.Zero(t, s.SendToUser(context.Background(), "u1", &NotificationPayload{}))
	}
	// The breaker trips after four consecutive failures.
	assert.Len(t, *calls, 4)
	_, err := repo.Get(context.Background(), "s")
	assert.NoError(t, err)
}

type recordingSender struct {
	mu    sync.Mutex
	users []string
	last  *NotificationPayload
}

func (r *recordingSender) SendToUser(_ context.Context, userID string, payload *NotificationPayload) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	r.last = payload
	return 1
}

type stubBuildings struct{}

func (stubBuildings) Get(_ context.Context, id string) (*building.Building, error) {
	if id == "b1" {
		return &building.Building{ID: "b1", Name: "Gangnam Tower"}, nil
	}
	return nil, cerr.NewError(cerr.NotFound, "building not found", nil)
}

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name      string
		event     *eventbus.Event
		wantUser  string
		wantTitle string
	}{
		{
			name:      "reassigned",
			event:     &eventbus.Event{Type: eventbus.EventTaskReassigned, ResourceID: "b1", Metadata: map[string]string{"to": "u3", "count": "2", "manager_type": "ADMIN"}},
			wantUser:  "u3",
			wantTitle: "Tasks reassigned to you",
		},
		{
			name:  "reassigned to nobody",
			event: &eventbus.Event{Type: eventbus.EventTaskReassigned, ResourceID: "b1", Metadata: map[string]string{"to": ""}},
		},
		{
			name:      "created with assignee",
			event:     &eventbus.Event{Type: eventbus.EventTaskCreated, ResourceID: "t1", Metadata: map[string]string{"assignee_id": "u1", "building_id": "b1"}},
			wantUser:  "u1",
			wantTitle: "New task",
		},
		{
			name:  "created without assignee",
			event: &eventbus.Event{Type: eventbus.EventTaskCreated, ResourceID: "t1", Metadata: map[string]string{"building_id": "b1"}},
		},
		{
			name:      "assignee changed",
			event:     &eventbus.Event{Type: eventbus.EventTaskUpdated, ResourceID: "t1", Metadata: map[string]string{"assignee_id": "u2", "assignee_changed": "true", "building_id": "gone"}},
			wantUser:  "u2",
			wantTitle: "Task assigned",
		},
		{
			name:  "status change only",
			event: &eventbus.Event{Type: eventbus.EventTaskUpdated, ResourceID: "t1", Metadata: map[string]string{"assignee_id": "u2", "building_id": "b1"}},
		},
		{
			name:  "unrelated",
			event: &eventbus.Event{Type: eventbus.EventBuildingDeleted, ResourceID: "b1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			NewDispatcher(eventbus.New(), stubBuildings{}, sender).Handle(context.Background(), tt.event)
			if tt.wantUser == "" {
				assert.Empty(t, sender.users)
				return
			}
			require.Equal(t, []string{tt.wantUser}, sender.users)
			assert.Equal(t, tt.wantTitle, sender.last.Title)
		})
	}

	sender := &recordingSender{}
	NewDispatcher(eventbus.New(), stubBuildings{}, sender).Handle(context.Background(),
		&eventbus.Event{Type: eventbus.EventTaskReassigned, ResourceID: "b1", Metadata: map[string]string{"to": "u3", "count": "2", "manager_type": "BIZ"}})
	assert.Equal(t, "2 BIZ task(s) at Gangnam Tower are now yours", sender.last.Body)
	assert.Equal(t, "/buildings/b1", sender.last.URL)
}

func TestServer(t *testing.T) {
	repo := newMemorySubscriptions()
	sender := &recordingSender{}
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	NewServer(testVAPID, repo, sender).Routes(r)

	do := func(userID, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if userID != "" {
			req = req.WithContext(permission.ContextWithPrincipal(req.Context(), &permission.Principal{UserID: userID, Role: permission.RoleUser}))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := do("u1", http.MethodGet, "/push/vapid-public-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"publicKey":"pub"}`, rec.Body.String())

	body := `{"endpoint":"https://push/1","p256dhKey":"p","authKey":"a"}`
	rec = do("u1", http.MethodPost, "/push/subscriptions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created SubscriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Same endpoint again rebinds instead of duplicating.
	rec = do("u2", http.MethodPost, "/push/subscriptions", `{"endpoint":"https://push/1","p256dhKey":"p2","authKey":"a2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "u2", sub.UserID)
	assert.Equal(t, "a2", sub.AuthKey)
	assert.Len(t, repo.subs, 1)

	assert.Equal(t, http.StatusBadRequest, do("u1", http.MethodPost, "/push/subscriptions", `{"endpoint":"https://push/2"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("u1", http.MethodPost, "/push/subscriptions", `{"endpoint":"http://push/3","p256dhKey":"p","authKey":"a"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do("", http.MethodPost, "/push/subscriptions", body).Code)

	assert.Equal(t, http.StatusNotFound, do("u1", http.MethodDelete, "/push/subscriptions", `{"endpoint":"https://push/1"}`).Code)
	assert.Equal(t, http.StatusOK, do("u2", http.MethodDelete, "/push/subscriptions", `{"endpoint":"https://push/1"}`).Code)
	assert.Empty(t, repo.subs)

	rec = do("u1", http.MethodPost, "/push/test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sent":1}`, rec.Body.String())
	assert.Equal(t, []string{"u1"}, sender.users)

	r2 := chi.NewRouter()
	r2.Use(cerr.NewJSONResponseChiMiddleware())
	NewServer(&config.VAPIDEnv{}, repo, sender).Routes(r2)
	rec = httptest.NewRecorder()
	r2.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/push/vapid-public-key", nil))
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}
