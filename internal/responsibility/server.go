package responsibility

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/user"
	"github.com/kazz187/buildingdesk/pkg/cerr"
	"github.com/kazz187/buildingdesk/pkg/clog"
)

type BuildingDetailReader interface {
	GetDetail(ctx context.Context, id string) (*building.Detail, error)
}

type Server struct {
	engine  *Engine
	details BuildingDetailReader
}

func NewServer(engine *Engine, details BuildingDetailReader) *Server {
	return &Server{
		engine:  engine,
		details: details,
	}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/buildings/{id}/managers", s.GetManagers)
	r.Put("/buildings/{id}/managers", s.UpdateManagers)
}

type ManagersResponse struct {
	Managers     []*user.Summary `json:"managers"`
	AdminManager *user.Summary   `json:"adminManager"`
	BizManager   *user.Summary   `json:"bizManager"`
}

func (s *Server) GetManagers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := permission.Authorize(ctx, permission.ActionViewResources); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	d, err := s.details.GetDetail(ctx, chi.URLParam(r, "id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	managers := d.Managers
	if managers == nil {
		managers = []*user.Summary{}
	}
	cerr.SetJSONResponse(ctx, &ManagersResponse{
		Managers:     managers,
		AdminManager: d.AdminManager,
		BizManager:   d.BizManager,
	})
}

// UpdateManagersRequest mirrors the managers form. An absent or null
// responsible clears it; an absent managerIds keeps the current managers.
type UpdateManagersRequest struct {
	AdminManagerID *string  `json:"adminManagerId"`
	BizManagerID   *string  `json:"bizManagerId"`
	ManagerIDs     []string `json:"managerIds"`
}

func (s *Server) UpdateManagers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := permission.Authorize(ctx, permission.ActionAssignResponsibles)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	buildingID := chi.URLParam(r, "id")
	clog.AddBuildingID(ctx, buildingID)

	var req UpdateManagersRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	res, err := s.engine.Assign(ctx, Request{
		BuildingID:     buildingID,
		AdminManagerID: req.AdminManagerID,
		BizManagerID:   req.BizManagerID,
		ManagerIDs:     req.ManagerIDs,
		ActorID:        p.UserID,
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, res.Building)
}
