package repositoryimpl

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

const templateColumns = `id, title, description, priority, manager_type, category, created_at, updated_at`

type PostgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ tasktemplate.Repository = (*PostgresRepository)(nil)

func scanTemplate(row pgx.Row) (*tasktemplate.Template, error) {
	var t tasktemplate.Template
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.ManagerType, &t.Category, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t *tasktemplate.Template) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO task_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Title, t.Description, t.Priority, t.ManagerType, t.Category, t.CreatedAt, t.UpdatedAt)
	return cerr.WrapDBError("task template", err)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*tasktemplate.Template, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM task_templates WHERE id = $1`, id))
	if err != nil {
		return nil, cerr.WrapDBError("task template", err)
	}
	return t, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter tasktemplate.ListFilter) ([]*tasktemplate.Template, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ManagerType != "" {
		args = append(args, filter.ManagerType)
		conds = append(conds, fmt.Sprintf("manager_type = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, database.ContainsPattern(filter.Search))
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + templateColumns + ` FROM task_templates`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, cerr.WrapDBError("task templates", err)
	}
	defer rows.Close()
	var out []*tasktemplate.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, cerr.WrapDBError("task templates", err)
		}
		out = append(out, t)
	}
	return out, cerr.WrapDBError("task templates", rows.Err())
}

func (r *PostgresRepository) Update(ctx context.Context, t *tasktemplate.Template) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE task_templates
		SET title = $2, description = $3, priority = $4, manager_type = $5, category = $6, updated_at = $7
		WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Priority, t.ManagerType, t.Category, t.UpdatedAt)
	if err != nil {
		return cerr.WrapDBError("task template", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "task template not found", nil)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM task_templates WHERE id = $1`, id)
	if err != nil {
		return cerr.WrapDBError("task template", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "task template not found", nil)
	}
	return nil
}

func (r *PostgresRepository) CountTasks(ctx context.Context, id string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE template_id = $1`, id).Scan(&n); err != nil {
		return 0, cerr.WrapDBError("tasks", err)
	}
	return n, nil
}

func (r *PostgresRepository) Stats(ctx context.Context) ([]*tasktemplate.Stats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tt.id, tt.title, tt.description, tt.priority, tt.manager_type, tt.category, tt.created_at, tt.updated_at,
			count(t.id),
			count(t.id) FILTER (WHERE t.status = 'COMPLETED')
		FROM task_templates tt
		LEFT JOIN tasks t ON t.template_id = tt.id
		GROUP BY tt.id
		ORDER BY tt.created_at DESC`)
	if err != nil {
		return nil, cerr.WrapDBError("task template stats", err)
	}
	defer rows.Close()
	var out []*tasktemplate.Stats
	for rows.Next() {
		var (
			t tasktemplate.Template
			s = tasktemplate.Stats{Template: &t}
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.ManagerType, &t.Category, &t.CreatedAt, &t.UpdatedAt,
			&s.TotalTasks, &s.CompletedTasks); err != nil {
			return nil, cerr.WrapDBError("task template stats", err)
		}
		out = append(out, &s)
	}
	return out, cerr.WrapDBError("task template stats", rows.Err())
}

func (r *PostgresRepository) BuildingStatus(ctx context.Context, id string) ([]*tasktemplate.BuildingStatus, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id, b.name, b.address, b.image_url,
			count(t.id),
			count(t.id) FILTER (WHERE t.status = 'PENDING'),
			count(t.id) FILTER (WHERE t.status = 'IN_PROGRESS'),
			count(t.id) FILTER (WHERE t.status = 'COMPLETED'),
			latest.id, latest.status, latest.created_at, latest.updated_at, latest.completed_at
		FROM buildings b
		JOIN tasks t ON t.building_id = b.id AND t.template_id = $1
		LEFT JOIN LATERAL (
			SELECT lt.id, lt.status, lt.created_at, lt.updated_at, lt.completed_at
			FROM tasks lt
			WHERE lt.building_id = b.id AND lt.template_id = $1
			ORDER BY lt.updated_at DESC
			LIMIT 1
		) latest ON true
		GROUP BY b.id, latest.id, latest.status, latest.created_at, latest.updated_at, latest.completed_at
		ORDER BY b.name ASC`, id)
	if err != nil {
		return nil, cerr.WrapDBError("template status", err)
	}
	defer rows.Close()
	var out []*tasktemplate.BuildingStatus
	for rows.Next() {
		var (
			bs tasktemplate.BuildingStatus
			lt tasktemplate.LatestTask
		)
		if err := rows.Scan(&bs.ID, &bs.Name, &bs.Address, &bs.ImageURL,
			&bs.TaskStats.Total, &bs.TaskStats.Pending, &bs.TaskStats.InProgress, &bs.TaskStats.Completed,
			&lt.ID, &lt.Status, &lt.CreatedAt, &lt.UpdatedAt, &lt.CompletedAt); err != nil {
			return nil, cerr.WrapDBError("template status", err)
		}
		if bs.TaskStats.Total > 0 {
			bs.TaskStats.CompletionRate = float64(bs.TaskStats.Completed) / float64(bs.TaskStats.Total) * 100
		}
		bs.LatestTask = &lt
		out = append(out, &bs)
	}
	return out, cerr.WrapDBError("template status", rows.Err())
}
