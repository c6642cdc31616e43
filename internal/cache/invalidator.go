package cache

import (
	"context"
	"log/slog"

	"github.com/kazz187/buildingdesk/internal/eventbus"
)

// Invalidator drops cache keys when matching events are published.
type Invalidator struct {
	cache *Cache
	bus   *eventbus.Bus
	rules map[eventbus.EventType][]string
}

func NewInvalidator(cache *Cache, bus *eventbus.Bus, rules map[eventbus.EventType][]string) *Invalidator {
	return &Invalidator{
		cache: cache,
		bus:   bus,
		rules: rules,
	}
}

// Start blocks until ctx is done.
func (i *Invalidator) Start(ctx context.Context) {
	subID, ch := i.bus.Subscribe(64)
	defer i.bus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			i.handle(ctx, ev)
		}
	}
}

func (i *Invalidator) handle(ctx context.Context, ev *eventbus.Event) {
	keys := i.rules[ev.Type]
	if len(keys) == 0 {
		return
	}
	if err := i.cache.Delete(ctx, keys...); err != nil {
		slog.WarnContext(ctx, "cache invalidation failed", "event_type", ev.Type, "keys", keys, "error", err)
	}
}
