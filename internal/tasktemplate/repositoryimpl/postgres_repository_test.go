package repositoryimpl

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/database/databasetest"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

func newTemplate(title string, mt tasktemplate.ManagerType, createdAt time.Time) *tasktemplate.Template {
	return &tasktemplate.Template{
		ID:          ulid.Make().String(),
		Title:       title,
		Description: title + " description",
		Priority:    tasktemplate.PriorityMedium,
		ManagerType: mt,
		Category:    tasktemplate.CategoryInspection,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func insertBuilding(t *testing.T, db database.DBTX, name string) string {
	t.Helper()
	id := ulid.Make().String()
	_, err := db.Exec(context.Background(), `INSERT INTO buildings (id, name, address) VALUES ($1, $2, 'addr')`, id, name)
	require.NoError(t, err)
	return id
}

func insertTask(t *testing.T, db database.DBTX, buildingID, templateID, status string, updatedAt time.Time) string {
	t.Helper()
	id := ulid.Make().String()
	_, err := db.Exec(context.Background(), `
		INSERT INTO tasks (id, status, building_id, template_id, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, status, buildingID, templateID, updatedAt)
	require.NoError(t, err)
	return id
}

func TestPostgresRepository_CRUD(t *testing.T) {
	repo := NewPostgresRepository(databasetest.Setup(t))
	ctx := context.Background()
	now := time.Now()

	older := newTemplate("Elevator inspection", tasktemplate.ManagerTypeAdmin, now.Add(-time.Hour))
	newer := newTemplate("Lease renewal", tasktemplate.ManagerTypeBiz, now)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	all, err := repo.List(ctx, tasktemplate.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)

	biz, err := repo.List(ctx, tasktemplate.ListFilter{ManagerType: tasktemplate.ManagerTypeBiz})
	require.NoError(t, err)
	require.Len(t, biz, 1)
	assert.Equal(t, newer.ID, biz[0].ID)

	found, err := repo.List(ctx, tasktemplate.ListFilter{Search: "ELEVATOR"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, older.ID, found[0].ID)

	older.ManagerType = tasktemplate.ManagerTypeBoth
	require.NoError(t, repo.Update(ctx, older))
	got, err := repo.Get(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, tasktemplate.ManagerTypeBoth, got.ManagerType)

	require.NoError(t, repo.Delete(ctx, older.ID))
	_, err = repo.Get(ctx, older.ID)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.True(t, cerr.IsCode(repo.Delete(ctx, older.ID), cerr.NotFound))
}

func TestPostgresRepository_Stats(t *testing.T) {
	db := databasetest.Setup(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()
	now := time.Now()

	tmpl := newTemplate("Fire drill", tasktemplate.ManagerTypeBoth, now)
	unused := newTemplate("Unused", tasktemplate.ManagerTypeAdmin, now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, tmpl))
	require.NoError(t, repo.Create(ctx, unused))

	b1 := insertBuilding(t, db, "Alpha")
	b2 := insertBuilding(t, db, "Beta")
	insertTask(t, db, b1, tmpl.ID, "PENDING", now.Add(-2*time.Hour))
	latest := insertTask(t, db, b1, tmpl.ID, "COMPLETED", now)
	insertTask(t, db, b2, tmpl.ID, "IN_PROGRESS", now)

	n, err := repo.CountTasks(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, tmpl.ID, stats[0].ID)
	assert.Equal(t, 3, stats[0].TotalTasks)
	assert.Equal(t, 1, stats[0].CompletedTasks)
	assert.Equal(t, 0, stats[1].TotalTasks)

	status, err := repo.BuildingStatus(ctx, tmpl.ID)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, "Alpha", status[0].Name)
	assert.Equal(t, tasktemplate.TaskStats{Total: 2, Pending: 1, Completed: 1, CompletionRate: 50}, status[0].TaskStats)
	require.NotNil(t, status[0].LatestTask)
	assert.Equal(t, latest, status[0].LatestTask.ID)
	assert.Equal(t, 1, status[1].TaskStats.InProgress)

	status, err = repo.BuildingStatus(ctx, unused.ID)
	require.NoError(t, err)
	assert.Empty(t, status)
}
