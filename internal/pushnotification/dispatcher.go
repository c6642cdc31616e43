package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/eventbus"
)

type BuildingReader interface {
	Get(ctx context.Context, id string) (*building.Building, error)
}

// UserSender is satisfied by *Sender.
type UserSender interface {
	SendToUser(ctx context.Context, userID string, payload *NotificationPayload) int
}

// Dispatcher notifies users when tasks land on them.
type Dispatcher struct {
	eventBus  *eventbus.Bus
	buildings BuildingReader
	sender    UserSender
}

func NewDispatcher(eventBus *eventbus.Bus, buildings BuildingReader, sender UserSender) *Dispatcher {
	return &Dispatcher{
		eventBus:  eventBus,
		buildings: buildings,
		sender:    sender,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.eventBus.Subscribe(256)
	defer d.eventBus.Unsubscribe(subID)

	slog.Info("push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.Handle(ctx, event)
		}
	}
}

func (d *Dispatcher) Handle(ctx context.Context, event *eventbus.Event) {
	md := event.Metadata
	switch event.Type {
	case eventbus.EventTaskReassigned:
		if md["to"] == "" {
			return
		}
		d.sender.SendToUser(ctx, md["to"], &NotificationPayload{
			Title: "Tasks reassigned to you",
			Body:  fmt.Sprintf("%s %s task(s) at %s are now yours", md["count"], md["manager_type"], d.buildingName(ctx, event.ResourceID)),
			URL:   "/buildings/" + event.ResourceID,
			Tag:   event.ID,
		})
	case eventbus.EventTaskCreated:
		if md["assignee_id"] == "" {
			return
		}
		d.sender.SendToUser(ctx, md["assignee_id"], &NotificationPayload{
			Title: "New task",
			Body:  "A new task at " + d.buildingName(ctx, md["building_id"]) + " was assigned to you",
			URL:   "/tasks/" + event.ResourceID,
			Tag:   event.ResourceID,
		})
	case eventbus.EventTaskUpdated:
		if md["assignee_changed"] != "true" || md["assignee_id"] == "" {
			return
		}
		d.sender.SendToUser(ctx, md["assignee_id"], &NotificationPayload{
			Title: "Task assigned",
			Body:  "A task at " + d.buildingName(ctx, md["building_id"]) + " was assigned to you",
			URL:   "/tasks/" + event.ResourceID,
			Tag:   event.ResourceID,
		})
	}
}

func (d *Dispatcher) buildingName(ctx context.Context, id string) string {
	b, err := d.buildings.Get(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "push dispatcher: failed to get building", "id", id, "error", err)
		return "a building"
	}
	return b.Name
}
