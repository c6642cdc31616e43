package building

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

type Server struct {
	repo     Repository
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:     repo,
		eventBus: eventBus,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/buildings", s.ListBuildings)
	r.Post("/buildings", s.CreateBuilding)
	r.Get("/buildings/{id}", s.GetBuilding)
	r.Put("/buildings/{id}", s.UpdateBuilding)
	r.Delete("/buildings/{id}", s.DeleteBuilding)
}

func (s *Server) ListBuildings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	q := r.URL.Query()
	buildings, err := s.repo.List(ctx, ListFilter{
		Status: q.Get("status"),
		Search: strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if buildings == nil {
		buildings = []*Detail{}
	}
	cerr.SetJSONResponse(ctx, buildings)
}

func (s *Server) GetBuilding(w http.ResponseWriter, r *http.Request) {
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
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Floors      int      `json:"floors"`
	YearBuilt   *int     `json:"yearBuilt"`
	TotalArea   *float64 `json:"totalArea"`
	Description *string  `json:"description"`
	Status      Status   `json:"status"`
	ImageURL    *string  `json:"imageUrl"`
	Managers    []string `json:"managers"`
}

func (s *Server) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageBuildings); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req CreateRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Address) == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name and address are required", nil)
		return
	}
	if req.Status == "" {
		req.Status = StatusActive
	}
	if !req.Status.Valid() {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown building status %q", req.Status), nil)
		return
	}

	now := time.Now()
	b := &Building{
		ID:          ulid.Make().String(),
		Name:        req.Name,
		Address:     req.Address,
		Floors:      req.Floors,
		YearBuilt:   req.YearBuilt,
		TotalArea:   req.TotalArea,
		Description: req.Description,
		Status:      req.Status,
		ImageURL:    req.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, b, req.Managers); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	d, err := s.repo.GetDetail(ctx, b.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, d)
}

// UpdateRequest carries the descriptive fields only. Responsible users are
// changed through the managers endpoint so that task reassignment runs.
type UpdateRequest struct {
	Name        *string  `json:"name"`
	Address     *string  `json:"address"`
	Floors      *int     `json:"floors"`
	YearBuilt   *int     `json:"yearBuilt"`
	TotalArea   *float64 `json:"totalArea"`
	Description *string  `json:"description"`
	Status      *Status  `json:"status"`
	ImageURL    *string  `json:"imageUrl"`
	Managers    []string `json:"managers"`
}

func (req *UpdateRequest) apply(b *Building) error {
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return cerr.NewError(cerr.InvalidArgument, "name must not be empty", nil)
		}
		b.Name = *req.Name
	}
	if req.Address != nil {
		if strings.TrimSpace(*req.Address) == "" {
			return cerr.NewError(cerr.InvalidArgument, "address must not be empty", nil)
		}
		b.Address = *req.Address
	}
	if req.Floors != nil {
		b.Floors = *req.Floors
	}
	if req.YearBuilt != nil {
		b.YearBuilt = req.YearBuilt
	}
	if req.TotalArea != nil {
		b.TotalArea = req.TotalArea
	}
	if req.Description != nil {
		b.Description = req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown building status %q", *req.Status), nil)
		}
		b.Status = *req.Status
	}
	if req.ImageURL != nil {
		b.ImageURL = req.ImageURL
	}
	return nil
}

func (s *Server) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageBuildings); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req UpdateRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	b, err := s.repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := req.apply(b); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	b.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, b, req.Managers); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	d, err := s.repo.GetDetail(ctx, b.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, d)
}

type DeleteResponse struct {
	Message string `json:"message"`
}

func (s *Server) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionManageBuildings); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.eventBus.PublishNew(eventbus.EventBuildingDeleted, id, nil)
	cerr.SetJSONResponse(ctx, &DeleteResponse{Message: "building deleted"})
}
