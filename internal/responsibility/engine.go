// Package responsibility changes a building's responsible users and moves
// their tasks to the new holders in the same transaction.
package responsibility

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/task"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/internal/user"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

var (
	ErrInvalidAssignment = errors.New("invalid responsibility assignment")
	ErrTransactionFailed = errors.New("responsibility transaction failed")
)

type UserLookup interface {
	Get(ctx context.Context, id string) (*user.User, error)
	GetSummaries(ctx context.Context, ids []string) ([]*user.Summary, error)
}

type BuildingLookup interface {
	Get(ctx context.Context, id string) (*building.Building, error)
}

type BuildingStore interface {
	GetForUpdate(ctx context.Context, id string) (*building.Building, error)
	SetResponsibles(ctx context.Context, id string, adminManagerID, bizManagerID *string) error
	ReplaceManagers(ctx context.Context, id string, userIDs []string) error
	GetDetail(ctx context.Context, id string) (*building.Detail, error)
}

type TaskStore interface {
	Reassign(ctx context.Context, filter task.ReassignFilter) (int64, error)
}

// Tx exposes the stores bound to one open transaction.
type Tx interface {
	Buildings() BuildingStore
	Tasks() TaskStore
}

// UnitOfWork runs fn in a transaction, committing when it returns nil and
// rolling back everything otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Request struct {
	BuildingID     string
	AdminManagerID *string
	BizManagerID   *string
	// ManagerIDs replaces the general managers when non-nil.
	ManagerIDs []string
	ActorID    string
}

type Reassignment struct {
	ManagerType tasktemplate.ManagerType `json:"managerType"`
	From        *string                  `json:"from"`
	To          *string                  `json:"to"`
	Count       int64                    `json:"count"`
}

type Result struct {
	Building               *building.Detail
	PreviousAdminManagerID *string
	PreviousBizManagerID   *string
	Reassignments          []Reassignment
}

type Engine struct {
	users     UserLookup
	buildings BuildingLookup
	uow       UnitOfWork
	eventBus  *eventbus.Bus
}

func NewEngine(users UserLookup, buildings BuildingLookup, uow UnitOfWork, eventBus *eventbus.Bus) *Engine {
	return &Engine{
		users:     users,
		buildings: buildings,
		uow:       uow,
		eventBus:  eventBus,
	}
}

// Assign sets the building's admin and biz responsible users and, when
// either changes, moves the tasks held by the previous one.
//
// ADMIN tasks follow the admin responsible and BIZ tasks the biz
// responsible. BOTH tasks go to the new admin, or the new biz when there
// is no admin. BOTH tasks held by the old biz are moved only when the
// building had no admin, so a BOTH task is never moved twice.
func (e *Engine) Assign(ctx context.Context, req Request) (*Result, error) {
	req.AdminManagerID = normalize(req.AdminManagerID)
	req.BizManagerID = normalize(req.BizManagerID)
	if err := e.validate(ctx, req); err != nil {
		return nil, err
	}

	var res *Result
	err := e.uow.Do(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		res, err = assign(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, transactionError(err)
	}
	e.publish(req, res)
	return res, nil
}

func (e *Engine) validate(ctx context.Context, req Request) error {
	if _, err := e.buildings.Get(ctx, req.BuildingID); err != nil {
		return err
	}
	if err := e.checkCandidate(ctx, req.AdminManagerID, "admin manager", permission.Role.CanBeAdminManager); err != nil {
		return err
	}
	if err := e.checkCandidate(ctx, req.BizManagerID, "biz manager", permission.Role.CanBeBizManager); err != nil {
		return err
	}
	if len(req.ManagerIDs) == 0 {
		return nil
	}
	ids := slices.Compact(slices.Sorted(slices.Values(req.ManagerIDs)))
	found, err := e.users.GetSummaries(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	seen := make(map[string]bool, len(found))
	for _, s := range found {
		seen[s.ID] = true
	}
	for _, id := range ids {
		if !seen[id] {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("manager %s not found", id), nil)
		}
	}
	return nil
}

func (e *Engine) checkCandidate(ctx context.Context, id *string, label string, compatible func(permission.Role) bool) error {
	if id == nil {
		return nil
	}
	u, err := e.users.Get(ctx, *id)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("%s %s does not exist", label, *id),
				fmt.Errorf("%w: %w", ErrInvalidAssignment, err))
		}
		return err
	}
	if !compatible(u.Role) {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("user %s with role %s cannot be %s", u.ID, u.Role, label),
			ErrInvalidAssignment)
	}
	return nil
}

func assign(ctx context.Context, tx Tx, req Request) (*Result, error) {
	buildings := tx.Buildings()
	current, err := buildings.GetForUpdate(ctx, req.BuildingID)
	if err != nil {
		return nil, err
	}
	oldAdmin, oldBiz := current.AdminManagerID, current.BizManagerID
	newAdmin, newBiz := req.AdminManagerID, req.BizManagerID

	if err := buildings.SetResponsibles(ctx, req.BuildingID, newAdmin, newBiz); err != nil {
		return nil, err
	}
	if req.ManagerIDs != nil {
		if err := buildings.ReplaceManagers(ctx, req.BuildingID, req.ManagerIDs); err != nil {
			return nil, err
		}
	}

	res := &Result{
		PreviousAdminManagerID: oldAdmin,
		PreviousBizManagerID:   oldBiz,
	}
	bothTarget := newAdmin
	if bothTarget == nil {
		bothTarget = newBiz
	}
	reassign := func(mt tasktemplate.ManagerType, from, to *string) error {
		if sameID(from, to) {
			return nil
		}
		n, err := tx.Tasks().Reassign(ctx, task.ReassignFilter{
			BuildingID:   req.BuildingID,
			ManagerType:  mt,
			FromAssignee: from,
			ToAssignee:   to,
		})
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "reassigned tasks",
			"building_id", req.BuildingID,
			"manager_type", mt,
			"from", idOrEmpty(from),
			"to", idOrEmpty(to),
			"count", n,
		)
		if n > 0 {
			res.Reassignments = append(res.Reassignments, Reassignment{ManagerType: mt, From: from, To: to, Count: n})
		}
		return nil
	}

	if !sameID(oldAdmin, newAdmin) {
		if err := reassign(tasktemplate.ManagerTypeAdmin, oldAdmin, newAdmin); err != nil {
			return nil, err
		}
		if err := reassign(tasktemplate.ManagerTypeBoth, oldAdmin, bothTarget); err != nil {
			return nil, err
		}
	}
	if !sameID(oldBiz, newBiz) {
		if err := reassign(tasktemplate.ManagerTypeBiz, oldBiz, newBiz); err != nil {
			return nil, err
		}
		// With an old admin present, BOTH tasks were handled by the admin pass.
		if oldAdmin == nil {
			if err := reassign(tasktemplate.ManagerTypeBoth, oldBiz, bothTarget); err != nil {
				return nil, err
			}
		}
	}

	res.Building, err = buildings.GetDetail(ctx, req.BuildingID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// transactionError keeps client-facing codes raised inside the transaction
// and reports everything else as a failed transaction.
func transactionError(err error) error {
	switch cerr.CodeOf(err) {
	case cerr.NotFound, cerr.InvalidArgument, cerr.AlreadyExists, cerr.PermissionDenied, cerr.Canceled:
		return err
	}
	return cerr.NewError(cerr.Internal, "failed to update building responsibles", fmt.Errorf("%w: %w", ErrTransactionFailed, err))
}

func (e *Engine) publish(req Request, res *Result) {
	e.eventBus.PublishNew(eventbus.EventBuildingResponsiblesUpdated, req.BuildingID, map[string]string{
		"actor_id":           req.ActorID,
		"admin_from":         idOrEmpty(res.PreviousAdminManagerID),
		"admin_to":           idOrEmpty(req.AdminManagerID),
		"biz_from":           idOrEmpty(res.PreviousBizManagerID),
		"biz_to":             idOrEmpty(req.BizManagerID),
		"managers_replaced":  strconv.FormatBool(req.ManagerIDs != nil),
		"reassignment_count": strconv.Itoa(len(res.Reassignments)),
	})
	for _, r := range res.Reassignments {
		e.eventBus.PublishNew(eventbus.EventTaskReassigned, req.BuildingID, map[string]string{
			"actor_id":     req.ActorID,
			"manager_type": string(r.ManagerType),
			"from":         idOrEmpty(r.From),
			"to":           idOrEmpty(r.To),
			"count":        strconv.FormatInt(r.Count, 10),
		})
	}
}

func normalize(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func idOrEmpty(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
