package pushnotification

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/config"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/pushsubscription"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	sender   UserSender
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, sender UserSender) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
		sender:   sender,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/push", func(r chi.Router) {
		r.Get("/vapid-public-key", s.GetVapidPublicKey)
		r.Post("/subscriptions", s.RegisterSubscription)
		r.Delete("/subscriptions", s.UnregisterSubscription)
		r.Post("/test", s.SendTestNotification)
	})
}

type VapidPublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (s *Server) GetVapidPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv.VAPIDPublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, &VapidPublicKeyResponse{PublicKey: s.vapidEnv.VAPIDPublicKey})
}

type RegisterSubscriptionRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dhKey"`
	AuthKey   string `json:"authKey"`
}

type SubscriptionResponse struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterSubscription is idempotent per endpoint. An endpoint seen before
// is rebound to the caller with the new keys.
func (s *Server) RegisterSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := permission.Authorize(ctx, permission.ActionViewResources)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req RegisterSubscriptionRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := pushsubscription.ValidateEndpoint(req.Endpoint); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), nil)
		return
	}
	switch {
	case req.P256dhKey == "":
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "p256dhKey is required", nil)
		return
	case req.AuthKey == "":
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "authKey is required", nil)
		return
	}

	now := time.Now()
	status := http.StatusOK
	sub, err := s.repo.FindByEndpoint(ctx, req.Endpoint)
	switch {
	case cerr.IsCode(err, cerr.NotFound):
		status = http.StatusCreated
		sub = &pushsubscription.Subscription{
			ID:        ulid.Make().String(),
			Endpoint:  req.Endpoint,
			CreatedAt: now,
		}
	case err != nil:
		cerr.SetJSONError(ctx, err)
		return
	}
	sub.Bind(p.UserID, req.P256dhKey, req.AuthKey, now)
	if err := s.repo.Save(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, status, &SubscriptionResponse{
		ID:        sub.ID,
		Endpoint:  sub.Endpoint,
		CreatedAt: sub.CreatedAt,
	})
}

type UnregisterSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (s *Server) UnregisterSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := permission.Authorize(ctx, permission.ActionViewResources)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req UnregisterSubscriptionRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	sub, err := s.repo.FindByEndpoint(ctx, req.Endpoint)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !sub.OwnedBy(p.UserID) {
		cerr.SetNewJSONError(ctx, cerr.NotFound, "push subscription not found", nil)
		return
	}
	if err := s.repo.Delete(ctx, sub.ID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &MessageResponse{Message: "push subscription removed"})
}

type TestNotificationResponse struct {
	Sent int `json:"sent"`
}

func (s *Server) SendTestNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := permission.Authorize(ctx, permission.ActionViewResources)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	sent := s.sender.SendToUser(ctx, p.UserID, &NotificationPayload{
		Title: "BuildingDesk",
		Body:  "Push notifications are working!",
	})
	cerr.SetJSONResponse(ctx, &TestNotificationResponse{Sent: sent})
}
