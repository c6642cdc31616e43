package repositoryimpl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/task"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	"github.com/kazz187/buildingdesk/internal/user"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

const (
	taskColumns   = `id, status, due_date, building_id, template_id, creator_id, assignee_id, completed_at, created_at, updated_at`
	reportColumns = `id, task_id, content, image_urls, time_spent, created_at, updated_at`
)

const detailQuery = `
	SELECT t.id, t.status, t.due_date, t.building_id, t.template_id, t.creator_id, t.assignee_id, t.completed_at,
		t.created_at, t.updated_at,
		tt.id, tt.title, tt.description, tt.priority, tt.manager_type, tt.category, tt.created_at, tt.updated_at,
		b.id, b.name, b.address, b.image_url,
		am.id, am.name, am.email, am.role, am.profile_image,
		bm.id, bm.name, bm.email, bm.role, bm.profile_image,
		a.id, a.name, a.email, a.role, a.profile_image,
		c.id, c.name, c.email, c.role, c.profile_image,
		r.id, r.content, r.image_urls, r.time_spent, r.created_at, r.updated_at
	FROM tasks t
	JOIN task_templates tt ON tt.id = t.template_id
	JOIN buildings b ON b.id = t.building_id
	LEFT JOIN users am ON am.id = b.admin_manager_id
	LEFT JOIN users bm ON bm.id = b.biz_manager_id
	LEFT JOIN users a ON a.id = t.assignee_id
	LEFT JOIN users c ON c.id = t.creator_id
	LEFT JOIN task_completion_reports r ON r.task_id = t.id`

type PostgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ task.Repository = (*PostgresRepository)(nil)

func scanTask(row pgx.Row) (*task.Task, error) {
	var t task.Task
	err := row.Scan(&t.ID, &t.Status, &t.DueDate, &t.BuildingID, &t.TemplateID, &t.CreatorID, &t.AssigneeID,
		&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// userRef receives a LEFT JOINed user, all columns NULL when absent.
type userRef struct {
	id, name, email, role, profileImage *string
}

func (u *userRef) targets() []any {
	return []any{&u.id, &u.name, &u.email, &u.role, &u.profileImage}
}

func (u *userRef) summary() *user.Summary {
	if u.id == nil {
		return nil
	}
	return &user.Summary{
		ID:           *u.id,
		Name:         deref(u.name),
		Email:        deref(u.email),
		Role:         permission.Role(deref(u.role)),
		ProfileImage: u.profileImage,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func scanDetail(row pgx.Row) (*task.Detail, error) {
	var (
		t                                task.Task
		tmpl                             tasktemplate.Template
		b                                task.BuildingRef
		admin, biz, assignee, creator    userRef
		reportID, content, imageURLs     *string
		timeSpent                        *int
		reportCreatedAt, reportUpdatedAt *time.Time
	)
	targets := []any{
		&t.ID, &t.Status, &t.DueDate, &t.BuildingID, &t.TemplateID, &t.CreatorID, &t.AssigneeID, &t.CompletedAt,
		&t.CreatedAt, &t.UpdatedAt,
		&tmpl.ID, &tmpl.Title, &tmpl.Description, &tmpl.Priority, &tmpl.ManagerType, &tmpl.Category, &tmpl.CreatedAt, &tmpl.UpdatedAt,
		&b.ID, &b.Name, &b.Address, &b.ImageURL,
	}
	targets = append(targets, admin.targets()...)
	targets = append(targets, biz.targets()...)
	targets = append(targets, assignee.targets()...)
	targets = append(targets, creator.targets()...)
	targets = append(targets, &reportID, &content, &imageURLs, &timeSpent, &reportCreatedAt, &reportUpdatedAt)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}

	b.AdminManager = admin.summary()
	b.BizManager = biz.summary()
	d := &task.Detail{
		Task:     &t,
		Template: &tmpl,
		Building: &b,
		Assignee: assignee.summary(),
		Creator:  creator.summary(),
	}
	if reportID != nil {
		d.CompletionReport = &task.CompletionReport{
			ID:        *reportID,
			TaskID:    t.ID,
			Content:   deref(content),
			ImageURLs: deref(imageURLs),
			CreatedAt: *reportCreatedAt,
			UpdatedAt: *reportUpdatedAt,
		}
		if timeSpent != nil {
			d.CompletionReport.TimeSpent = *timeSpent
		}
	}
	return d, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Status, t.DueDate, t.BuildingID, t.TemplateID, t.CreatorID, t.AssigneeID, t.CompletedAt, t.CreatedAt, t.UpdatedAt)
	return cerr.WrapDBError("task", err)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, cerr.WrapDBError("task", err)
	}
	return t, nil
}

func (r *PostgresRepository) GetDetail(ctx context.Context, id string) (*task.Detail, error) {
	d, err := scanDetail(r.db.QueryRow(ctx, detailQuery+` WHERE t.id = $1`, id))
	if err != nil {
		return nil, cerr.WrapDBError("task", err)
	}
	return d, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter task.ListFilter) ([]*task.Detail, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}
	if filter.BuildingID != "" {
		add("t.building_id = ?", filter.BuildingID)
	}
	if filter.Status != "" {
		add("t.status = ?", filter.Status)
	}
	if filter.AssigneeID != "" {
		add("t.assignee_id = ?", filter.AssigneeID)
	}
	if filter.TemplateID != "" {
		add("t.template_id = ?", filter.TemplateID)
	}
	if filter.ManagerType != "" {
		add("tt.manager_type = ?", filter.ManagerType)
	}
	if filter.Search != "" {
		add("(tt.title ILIKE ? OR b.name ILIKE ?)", database.ContainsPattern(filter.Search))
	}
	query := detailQuery
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY t.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, cerr.WrapDBError("tasks", err)
	}
	defer rows.Close()
	var out []*task.Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, cerr.WrapDBError("tasks", err)
		}
		out = append(out, d)
	}
	return out, cerr.WrapDBError("tasks", rows.Err())
}

func (r *PostgresRepository) Update(ctx context.Context, t *task.Task) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tasks
		SET status = $2, due_date = $3, assignee_id = $4, completed_at = $5, updated_at = $6
		WHERE id = $1`,
		t.ID, t.Status, t.DueDate, t.AssigneeID, t.CompletedAt, t.UpdatedAt)
	if err != nil {
		return cerr.WrapDBError("task", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return cerr.WrapDBError("task", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func (r *PostgresRepository) GetReport(ctx context.Context, taskID string) (*task.CompletionReport, error) {
	var rep task.CompletionReport
	err := r.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM task_completion_reports WHERE task_id = $1`, taskID).
		Scan(&rep.ID, &rep.TaskID, &rep.Content, &rep.ImageURLs, &rep.TimeSpent, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, cerr.WrapDBError("completion report", err)
	}
	return &rep, nil
}

func (r *PostgresRepository) Complete(ctx context.Context, report *task.CompletionReport) (*task.Task, error) {
	var completed *task.Task
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		completed, err = scanTask(tx.QueryRow(ctx, `
			UPDATE tasks SET status = $2, completed_at = $3, updated_at = $3
			WHERE id = $1
			RETURNING `+taskColumns,
			report.TaskID, task.StatusCompleted, report.CreatedAt))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO task_completion_reports (`+reportColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			report.ID, report.TaskID, report.Content, report.ImageURLs, report.TimeSpent, report.CreatedAt, report.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, cerr.WrapDBError("task", err)
	}
	return completed, nil
}

func (r *PostgresRepository) UpdateReport(ctx context.Context, report *task.CompletionReport) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE task_completion_reports SET content = $2, updated_at = $3 WHERE task_id = $1`,
		report.TaskID, report.Content, report.UpdatedAt)
	if err != nil {
		return cerr.WrapDBError("completion report", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "completion report not found", nil)
	}
	return nil
}

func (r *PostgresRepository) Reassign(ctx context.Context, filter task.ReassignFilter) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE tasks t
		SET assignee_id = $4, updated_at = now()
		FROM task_templates tt
		WHERE t.template_id = tt.id
			AND t.building_id = $1
			AND tt.manager_type = $2
			AND t.assignee_id IS NOT DISTINCT FROM $3`,
		filter.BuildingID, filter.ManagerType, filter.FromAssignee, filter.ToAssignee)
	if err != nil {
		return 0, cerr.WrapDBError("tasks", err)
	}
	return tag.RowsAffected(), nil
}
