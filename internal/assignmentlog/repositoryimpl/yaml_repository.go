package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/buildingdesk/internal/assignmentlog"
	"github.com/kazz187/buildingdesk/pkg/cerr"
	"github.com/kazz187/buildingdesk/pkg/storage"
)

const assignmentLogsPrefix = "assignment_logs"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

var _ assignmentlog.Repository = (*YAMLRepository)(nil)

func dir(buildingID string) string {
	return fmt.Sprintf("%s/%s", assignmentLogsPrefix, buildingID)
}

func path(buildingID, id string) string {
	return fmt.Sprintf("%s/%s.yaml", dir(buildingID), id)
}

func (r *YAMLRepository) Create(ctx context.Context, e *assignmentlog.Entry) error {
	if e.BuildingID == "" || strings.ContainsAny(e.BuildingID, "/\\") {
		return cerr.NewError(cerr.InvalidArgument, "invalid building id", nil)
	}
	data, err := yaml.Marshal(e)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal assignment log: %w", err))
	}
	if err := r.storage.Create(ctx, path(e.BuildingID, e.ID), data); err != nil {
		return cerr.WrapStorageWriteError("assignment log", err)
	}
	return nil
}

func (r *YAMLRepository) List(ctx context.Context, buildingID string, limit, offset int) ([]*assignmentlog.Entry, int, error) {
	paths, err := r.storage.List(ctx, dir(buildingID))
	if err != nil {
		return nil, 0, cerr.WrapStorageReadError("assignment_logs", err)
	}

	// ulid file names sort by creation time.
	slices.Sort(paths)
	slices.Reverse(paths)

	total := len(paths)
	if offset >= total {
		return []*assignmentlog.Entry{}, total, nil
	}
	paths = paths[offset:]
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	entries := make([]*assignmentlog.Entry, 0, len(paths))
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			slog.WarnContext(ctx, "failed to read assignment log", "path", p, "error", err)
			continue
		}
		var e assignmentlog.Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			slog.WarnContext(ctx, "failed to parse assignment log", "path", p, "error", err)
			continue
		}
		entries = append(entries, &e)
	}
	return entries, total, nil
}
