package assignmentlog

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/buildingdesk/internal/eventbus"
)

// Recorder writes an Entry for every responsibility event on the bus.
type Recorder struct {
	eventBus *eventbus.Bus
	repo     Repository
}

func NewRecorder(eventBus *eventbus.Bus, repo Repository) *Recorder {
	return &Recorder{
		eventBus: eventBus,
		repo:     repo,
	}
}

func (r *Recorder) Start(ctx context.Context) {
	subID, ch := r.eventBus.Subscribe(256)
	defer r.eventBus.Unsubscribe(subID)

	slog.Info("assignment log recorder started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("assignment log recorder stopped")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			entry := EntryFromEvent(event)
			if entry == nil {
				continue
			}
			if err := r.repo.Create(ctx, entry); err != nil {
				slog.Error("failed to record assignment log", "event_id", event.ID, "building_id", event.ResourceID, "error", err)
			}
		}
	}
}

// EntryFromEvent returns nil for events that are not part of the audit trail.
func EntryFromEvent(event *eventbus.Event) *Entry {
	var (
		kind Kind
		msg  string
	)
	md := event.Metadata
	switch event.Type {
	case eventbus.EventBuildingResponsiblesUpdated:
		kind = KindResponsiblesUpdated
		msg = fmt.Sprintf("admin manager %s -> %s, biz manager %s -> %s",
			orNone(md["admin_from"]), orNone(md["admin_to"]), orNone(md["biz_from"]), orNone(md["biz_to"]))
	case eventbus.EventTaskReassigned:
		kind = KindTasksReassigned
		msg = fmt.Sprintf("%s %s tasks moved from %s to %s",
			md["count"], md["manager_type"], orNone(md["from"]), orNone(md["to"]))
	default:
		return nil
	}
	return &Entry{
		ID:         ulid.Make().String(),
		BuildingID: event.ResourceID,
		Kind:       kind,
		ActorID:    md["actor_id"],
		Message:    msg,
		Metadata:   maps.Clone(md),
		CreatedAt:  event.CreatedAt,
	}
}

func orNone(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}
