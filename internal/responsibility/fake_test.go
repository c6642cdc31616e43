package responsibility

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/task"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/internal/user"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

var errConnReset = errors.New("connection reset by peer")

type memTask struct {
	buildingID  string
	managerType tasktemplate.ManagerType
	assignee    *string
}

// memStore is an in-memory UnitOfWork. Do holds the lock for the whole
// transaction and restores a snapshot when fn fails.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*user.User
	buildings map[string]*building.Building
	managers  map[string][]string
	tasks     map[string]*memTask

	// failReassignAt makes the n-th Reassign call of a transaction fail.
	failReassignAt int
	reassignCalls  []task.ReassignFilter
}

func newMemStore() *memStore {
	s := &memStore{
		users:     make(map[string]*user.User),
		buildings: make(map[string]*building.Building),
		managers:  make(map[string][]string),
		tasks:     make(map[string]*memTask),
	}
	for id, role := range map[string]permission.Role{
		"U1":  permission.RoleAdminManager,
		"U2":  permission.RoleBizManager,
		"U3":  permission.RoleAdminManager,
		"U4":  permission.RoleBizManager,
		"U5":  permission.RoleBuildingAdmin,
		"SA":  permission.RoleSuperAdmin,
		"BM":  permission.RoleBuildingManager,
		"USR": permission.RoleUser,
	} {
		s.users[id] = &user.User{ID: id, Name: "user " + id, Email: id + "@example.com", Role: role}
	}
	return s
}

func ptr(s string) *string {
	return &s
}

func (s *memStore) addBuilding(id string, admin, biz *string) {
	s.buildings[id] = &building.Building{ID: id, Name: "building " + id, AdminManagerID: admin, BizManagerID: biz}
}

func (s *memStore) addTask(id, buildingID string, mt tasktemplate.ManagerType, assignee *string) {
	s.tasks[id] = &memTask{buildingID: buildingID, managerType: mt, assignee: assignee}
}

func (s *memStore) assignee(id string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].assignee
}

func (s *memStore) building(id string) building.Building {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.buildings[id]
}

// UserLookup

func (s *memStore) Get(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "user not found", nil)
	}
	return u, nil
}

func (s *memStore) GetSummaries(_ context.Context, ids []string) ([]*user.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*user.Summary
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

type memBuildingLookup struct {
	s *memStore
}

func (l memBuildingLookup) Get(_ context.Context, id string) (*building.Building, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	b, ok := l.s.buildings[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "building not found", nil)
	}
	cp := *b
	return &cp, nil
}

func (l memBuildingLookup) GetDetail(ctx context.Context, id string) (*building.Detail, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return memTx{l.s}.getDetail(id)
}

// UnitOfWork

func (s *memStore) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buildings := make(map[string]*building.Building, len(s.buildings))
	for id, b := range s.buildings {
		cp := *b
		buildings[id] = &cp
	}
	managers := maps.Clone(s.managers)
	tasks := make(map[string]*memTask, len(s.tasks))
	for id, t := range s.tasks {
		cp := *t
		tasks[id] = &cp
	}
	s.reassignCalls = nil

	if err := fn(ctx, memTx{s}); err != nil {
		s.buildings, s.managers, s.tasks = buildings, managers, tasks
		return err
	}
	return nil
}

type memTx struct {
	s *memStore
}

func (tx memTx) Buildings() BuildingStore { return tx }
func (tx memTx) Tasks() TaskStore         { return tx }

func (tx memTx) GetForUpdate(_ context.Context, id string) (*building.Building, error) {
	b, ok := tx.s.buildings[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "building not found", nil)
	}
	cp := *b
	return &cp, nil
}

func (tx memTx) SetResponsibles(_ context.Context, id string, admin, biz *string) error {
	b, ok := tx.s.buildings[id]
	if !ok {
		return cerr.NewError(cerr.NotFound, "building not found", nil)
	}
	b.AdminManagerID, b.BizManagerID = admin, biz
	return nil
}

func (tx memTx) ReplaceManagers(_ context.Context, id string, userIDs []string) error {
	tx.s.managers[id] = append([]string{}, userIDs...)
	return nil
}

func (tx memTx) GetDetail(_ context.Context, id string) (*building.Detail, error) {
	return tx.getDetail(id)
}

func (tx memTx) getDetail(id string) (*building.Detail, error) {
	b, ok := tx.s.buildings[id]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "building not found", nil)
	}
	cp := *b
	d := &building.Detail{Building: &cp, Managers: []*user.Summary{}}
	for _, uid := range tx.s.managers[id] {
		d.Managers = append(d.Managers, tx.s.users[uid].Summary())
	}
	if cp.AdminManagerID != nil {
		d.AdminManager = tx.s.users[*cp.AdminManagerID].Summary()
	}
	if cp.BizManagerID != nil {
		d.BizManager = tx.s.users[*cp.BizManagerID].Summary()
	}
	return d, nil
}

func (tx memTx) Reassign(_ context.Context, f task.ReassignFilter) (int64, error) {
	tx.s.reassignCalls = append(tx.s.reassignCalls, f)
	if tx.s.failReassignAt == len(tx.s.reassignCalls) {
		return 0, errConnReset
	}
	var n int64
	for _, t := range tx.s.tasks {
		if t.buildingID != f.BuildingID || t.managerType != f.ManagerType || !sameID(t.assignee, f.FromAssignee) {
			continue
		}
		if f.ToAssignee == nil {
			t.assignee = nil
		} else {
			t.assignee = ptr(*f.ToAssignee)
		}
		n++
	}
	return n, nil
}
