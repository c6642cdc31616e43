package clog

import (
	"context"
	"maps"
	"sync"
)

const (
	ErrorAttributeKey      = "error.message"
	StackAttributeKey      = "error.stack"
	UserIDAttributeKey     = "user.id"
	BuildingIDAttributeKey = "building.id"
	WorkerAttributeKey     = "worker"
)

// attrSet is the mutable attribute bag carried by a request or worker context.
type attrSet struct {
	mu    sync.RWMutex
	attrs map[string]any
}

type attrSetKey struct{}

func attrSetFrom(ctx context.Context) *attrSet {
	s, _ := ctx.Value(attrSetKey{}).(*attrSet)
	return s
}

// ContextWithSlog starts a new attribute bag. Attributes already present on
// ctx are copied in, so a derived context logs everything its parent did but
// additions do not leak back.
func ContextWithSlog(ctx context.Context) context.Context {
	s := &attrSet{attrs: make(map[string]any)}
	if parent := attrSetFrom(ctx); parent != nil {
		s.attrs = parent.snapshot()
	}
	return context.WithValue(ctx, attrSetKey{}, s)
}

func AddAttribute(ctx context.Context, key string, value any) {
	s := attrSetFrom(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[key] = value
}

// AddAttributes merges attributes in; nested maps are merged key by key.
func AddAttributes(ctx context.Context, attributes map[string]any) {
	s := attrSetFrom(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	merge(s.attrs, attributes)
}

func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	s := attrSetFrom(ctx)
	if s == nil {
		return zero
	}
	s.mu.RLock()
	v, ok := s.attrs[key].(T)
	s.mu.RUnlock()
	if !ok {
		return zero
	}
	return v
}

func GetAttributes(ctx context.Context) map[string]any {
	s := attrSetFrom(ctx)
	if s == nil {
		return nil
	}
	return s.snapshot()
}

func (s *attrSet) snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.attrs)
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if existing, ok := dst[k].(map[string]any); ok {
			merge(existing, sub)
			continue
		}
		dst[k] = deepCopy(sub)
	}
}

func deepCopy(m map[string]any) map[string]any {
	out := maps.Clone(m)
	if out == nil {
		out = make(map[string]any)
	}
	for k, v := range out {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopy(sub)
		}
	}
	return out
}

func AddUserID(ctx context.Context, userID string) {
	AddAttribute(ctx, UserIDAttributeKey, userID)
}

func AddBuildingID(ctx context.Context, buildingID string) {
	AddAttribute(ctx, BuildingIDAttributeKey, buildingID)
}

// AddWorker names the background worker a log line came from.
func AddWorker(ctx context.Context, name string) {
	AddAttribute(ctx, WorkerAttributeKey, name)
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

func GetStack(ctx context.Context) string {
	return GetAttribute[string](ctx, StackAttributeKey)
}
