package responsibility

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

const (
	admin = tasktemplate.ManagerTypeAdmin
	biz   = tasktemplate.ManagerTypeBiz
	both  = tasktemplate.ManagerTypeBoth
)

func newTestEngine(s *memStore) (*Engine, *eventbus.Bus) {
	bus := eventbus.New()
	return NewEngine(s, memBuildingLookup{s}, s, bus), bus
}

func drain(ch <-chan *eventbus.Event) []*eventbus.Event {
	var events []*eventbus.Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestAssign_AdminChangeMovesAdminAndBothTasks(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", ptr("U1"), ptr("U2"))
	s.addTask("T1", "B", admin, ptr("U1"))
	s.addTask("T2", "B", both, ptr("U1"))
	s.addTask("T4", "B", biz, ptr("U2"))
	e, _ := newTestEngine(s)

	res, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr("U3"),
		BizManagerID:   ptr("U2"),
		ActorID:        "SA",
	})
	require.NoError(t, err)

	assert.Equal(t, ptr("U3"), s.assignee("T1"))
	assert.Equal(t, ptr("U3"), s.assignee("T2"))
	assert.Equal(t, ptr("U2"), s.assignee("T4"))

	b := s.building("B")
	assert.Equal(t, ptr("U3"), b.AdminManagerID)
	assert.Equal(t, ptr("U2"), b.BizManagerID)

	require.NotNil(t, res.Building)
	require.NotNil(t, res.Building.AdminManager)
	assert.Equal(t, "U3", res.Building.AdminManager.ID)
	assert.Equal(t, ptr("U1"), res.PreviousAdminManagerID)
	assert.Equal(t, ptr("U2"), res.PreviousBizManagerID)
	assert.Equal(t, []Reassignment{
		{ManagerType: admin, From: ptr("U1"), To: ptr("U3"), Count: 1},
		{ManagerType: both, From: ptr("U1"), To: ptr("U3"), Count: 1},
	}, res.Reassignments)
}

func TestAssign_AdminClearedBothFallsBackToBiz(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", ptr("U1"), ptr("U2"))
	s.addTask("T1", "B", admin, ptr("U1"))
	s.addTask("T2", "B", both, ptr("U1"))
	s.addTask("T4", "B", biz, ptr("U2"))
	e, _ := newTestEngine(s)

	_, err := e.Assign(context.Background(), Request{
		BuildingID:   "B",
		BizManagerID: ptr("U4"),
	})
	require.NoError(t, err)

	assert.Nil(t, s.assignee("T1"))
	assert.Equal(t, ptr("U4"), s.assignee("T2"))
	assert.Equal(t, ptr("U4"), s.assignee("T4"))

	b := s.building("B")
	assert.Nil(t, b.AdminManagerID)
	assert.Equal(t, ptr("U4"), b.BizManagerID)
}

func TestAssign_NoPreviousAdminMovesBothTasksOfOldBiz(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", nil, ptr("U2"))
	s.addTask("T3", "B", both, ptr("U2"))
	s.addTask("T5", "B", biz, ptr("U2"))
	e, _ := newTestEngine(s)

	_, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr("U5"),
	})
	require.NoError(t, err)

	assert.Equal(t, ptr("U5"), s.assignee("T3"))
	assert.Nil(t, s.assignee("T5"))
}

func TestAssign_UnchangedDoesNotTouchTasks(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", ptr("U1"), ptr("U2"))
	s.addTask("T1", "B", admin, ptr("U1"))
	s.addTask("T2", "B", both, nil)
	e, bus := newTestEngine(s)
	_, ch := bus.Subscribe(16)

	res, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr("U1"),
		BizManagerID:   ptr("U2"),
		ManagerIDs:     []string{"BM", "U3"},
	})
	require.NoError(t, err)

	assert.Empty(t, s.reassignCalls)
	assert.Empty(t, res.Reassignments)
	assert.Equal(t, ptr("U1"), s.assignee("T1"))
	assert.Nil(t, s.assignee("T2"))
	require.Len(t, res.Building.Managers, 2)
	assert.Equal(t, "BM", res.Building.Managers[0].ID)

	events := drain(ch)
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.EventBuildingResponsiblesUpdated, events[0].Type)
	assert.Equal(t, "true", events[0].Metadata["managers_replaced"])
	assert.Equal(t, "0", events[0].Metadata["reassignment_count"])
}

func TestAssign_Isolation(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", ptr("U1"), ptr("U2"))
	s.addBuilding("OTHER", ptr("U1"), ptr("U2"))
	s.addTask("mine", "B", admin, ptr("U1"))
	s.addTask("other-building", "OTHER", admin, ptr("U1"))
	s.addTask("biz-type", "B", biz, ptr("U1"))
	s.addTask("other-assignee", "B", admin, ptr("BM"))
	s.addTask("unassigned", "B", admin, nil)
	e, _ := newTestEngine(s)

	_, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr("U3"),
		BizManagerID:   ptr("U2"),
	})
	require.NoError(t, err)

	assert.Equal(t, ptr("U3"), s.assignee("mine"))
	assert.Equal(t, ptr("U1"), s.assignee("other-building"))
	assert.Equal(t, ptr("U1"), s.assignee("biz-type"))
	assert.Equal(t, ptr("BM"), s.assignee("other-assignee"))
	assert.Nil(t, s.assignee("unassigned"))
	b := s.building("OTHER")
	assert.Equal(t, ptr("U1"), b.AdminManagerID)
}

func TestAssign_BothChangedMovesBothTaskOnce(t *testing.T) {
	tests := []struct {
		name     string
		newAdmin *string
		newBiz   *string
		want     *string
	}{
		{"admin wins", ptr("U3"), ptr("U4"), ptr("U3")},
		{"falls back to biz", nil, ptr("U4"), ptr("U4")},
		{"both cleared", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			s.addBuilding("B", ptr("U1"), ptr("U2"))
			s.addTask("both-admin", "B", both, ptr("U1"))
			s.addTask("both-biz", "B", both, ptr("U2"))
			e, _ := newTestEngine(s)

			_, err := e.Assign(context.Background(), Request{
				BuildingID:     "B",
				AdminManagerID: tt.newAdmin,
				BizManagerID:   tt.newBiz,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.want, s.assignee("both-admin"))
			// The old admin was set, so BOTH tasks of the old biz stay put.
			assert.Equal(t, ptr("U2"), s.assignee("both-biz"))

			var bothPasses int
			for _, f := range s.reassignCalls {
				if f.ManagerType == both {
					bothPasses++
				}
			}
			assert.Equal(t, 1, bothPasses)
		})
	}
}

func TestAssign_NoPreviousAdminBothFallback(t *testing.T) {
	tests := []struct {
		name     string
		newAdmin *string
		newBiz   *string
		want     *string
	}{
		{"to new biz", nil, ptr("U4"), ptr("U4")},
		{"to new admin", ptr("U3"), ptr("U4"), ptr("U3")},
		{"cleared", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			s.addBuilding("B", nil, ptr("U2"))
			s.addTask("T", "B", both, ptr("U2"))
			e, _ := newTestEngine(s)

			_, err := e.Assign(context.Background(), Request{
				BuildingID:     "B",
				AdminManagerID: tt.newAdmin,
				BizManagerID:   tt.newBiz,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.assignee("T"))
		})
	}
}

func TestAssign_UnassignedTasksFollowNewResponsible(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", nil, nil)
	s.addTask("admin-open", "B", admin, nil)
	s.addTask("both-open", "B", both, nil)
	s.addTask("biz-open", "B", biz, nil)
	e, _ := newTestEngine(s)

	_, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr("U3"),
		BizManagerID:   ptr("U4"),
	})
	require.NoError(t, err)

	assert.Equal(t, ptr("U3"), s.assignee("admin-open"))
	assert.Equal(t, ptr("U3"), s.assignee("both-open"))
	assert.Equal(t, ptr("U4"), s.assignee("biz-open"))
}

func TestAssign_RollsBackWhenReassignFails(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", ptr("U1"), ptr("U2"))
	s.addTask("T1", "B", admin, ptr("U1"))
	s.addTask("T2", "B", both, ptr("U1"))
	s.managers["B"] = []string{"BM"}
	s.failReassignAt = 2
	e, bus := newTestEngine(s)
	_, ch := bus.Subscribe(16)

	res, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr("U3"),
		BizManagerID:   ptr("U4"),
		ManagerIDs:     []string{"U3"},
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, cerr.IsCode(err, cerr.Internal))
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, errConnReset)

	b := s.building("B")
	assert.Equal(t, ptr("U1"), b.AdminManagerID)
	assert.Equal(t, ptr("U2"), b.BizManagerID)
	assert.Equal(t, ptr("U1"), s.assignee("T1"))
	assert.Equal(t, ptr("U1"), s.assignee("T2"))
	assert.Equal(t, []string{"BM"}, s.managers["B"])
	assert.Empty(t, drain(ch))
}

func TestAssign_Validation(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		wantCode    cerr.Code
		wantInvalid bool
	}{
		{
			name:     "building not found",
			req:      Request{BuildingID: "missing", AdminManagerID: ptr("U3")},
			wantCode: cerr.NotFound,
		},
		{
			name:        "admin candidate has biz role",
			req:         Request{BuildingID: "B", AdminManagerID: ptr("U2"), BizManagerID: ptr("U2")},
			wantCode:    cerr.InvalidArgument,
			wantInvalid: true,
		},
		{
			name:        "biz candidate has admin role",
			req:         Request{BuildingID: "B", AdminManagerID: ptr("U1"), BizManagerID: ptr("U3")},
			wantCode:    cerr.InvalidArgument,
			wantInvalid: true,
		},
		{
			name:        "plain user cannot be responsible",
			req:         Request{BuildingID: "B", AdminManagerID: ptr("USR")},
			wantCode:    cerr.InvalidArgument,
			wantInvalid: true,
		},
		{
			name:        "candidate does not exist",
			req:         Request{BuildingID: "B", BizManagerID: ptr("ghost")},
			wantCode:    cerr.InvalidArgument,
			wantInvalid: true,
		},
		{
			name:     "manager does not exist",
			req:      Request{BuildingID: "B", AdminManagerID: ptr("U1"), BizManagerID: ptr("U2"), ManagerIDs: []string{"BM", "ghost", "BM"}},
			wantCode: cerr.NotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			s.addBuilding("B", ptr("U1"), ptr("U2"))
			s.addTask("T1", "B", admin, ptr("U1"))
			e, bus := newTestEngine(s)
			_, ch := bus.Subscribe(16)

			_, err := e.Assign(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, cerr.CodeOf(err))
			assert.Equal(t, tt.wantInvalid, errors.Is(err, ErrInvalidAssignment))

			b := s.building("B")
			assert.Equal(t, ptr("U1"), b.AdminManagerID)
			assert.Equal(t, ptr("U2"), b.BizManagerID)
			assert.Equal(t, ptr("U1"), s.assignee("T1"))
			assert.Empty(t, s.reassignCalls)
			assert.Empty(t, drain(ch))
		})
	}
}

func TestAssign_EmptyIDClearsResponsible(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", ptr("U1"), ptr("U2"))
	s.addTask("T1", "B", admin, ptr("U1"))
	e, _ := newTestEngine(s)

	_, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr(""),
		BizManagerID:   ptr("U2"),
	})
	require.NoError(t, err)

	b := s.building("B")
	assert.Nil(t, b.AdminManagerID)
	assert.Nil(t, s.assignee("T1"))
}

func TestAssign_PublishesEvents(t *testing.T) {
	s := newMemStore()
	s.addBuilding("B", ptr("U1"), ptr("U2"))
	s.addTask("T1", "B", admin, ptr("U1"))
	s.addTask("T2", "B", admin, ptr("U1"))
	s.addTask("T3", "B", biz, ptr("U2"))
	e, bus := newTestEngine(s)
	_, ch := bus.Subscribe(16)

	_, err := e.Assign(context.Background(), Request{
		BuildingID:     "B",
		AdminManagerID: ptr("U3"),
		BizManagerID:   ptr("U4"),
		ActorID:        "SA",
	})
	require.NoError(t, err)

	events := drain(ch)
	require.Len(t, events, 3)

	updated := events[0]
	assert.Equal(t, eventbus.EventBuildingResponsiblesUpdated, updated.Type)
	assert.Equal(t, "B", updated.ResourceID)
	assert.Equal(t, map[string]string{
		"actor_id":           "SA",
		"admin_from":         "U1",
		"admin_to":           "U3",
		"biz_from":           "U2",
		"biz_to":             "U4",
		"managers_replaced":  "false",
		"reassignment_count": "2",
	}, updated.Metadata)

	assert.Equal(t, eventbus.EventTaskReassigned, events[1].Type)
	assert.Equal(t, "ADMIN", events[1].Metadata["manager_type"])
	assert.Equal(t, "U3", events[1].Metadata["to"])
	assert.Equal(t, "2", events[1].Metadata["count"])

	assert.Equal(t, eventbus.EventTaskReassigned, events[2].Type)
	assert.Equal(t, "BIZ", events[2].Metadata["manager_type"])
	assert.Equal(t, "U2", events[2].Metadata["from"])
	assert.Equal(t, "U4", events[2].Metadata["to"])
}

func TestTransactionError(t *testing.T) {
	notFound := cerr.NewError(cerr.NotFound, "building not found", nil)
	assert.Same(t, notFound, transactionError(notFound))

	err := transactionError(cerr.NewError(cerr.Internal, "db", errConnReset))
	assert.True(t, cerr.IsCode(err, cerr.Internal))
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, errConnReset)
}
