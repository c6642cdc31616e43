package repositoryimpl

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/permission"
	"github.com/kazz187/buildingdesk/internal/user"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

const (
	userColumns    = `id, name, email, password_hash, role, phone_number, profile_image, created_at, updated_at`
	summaryColumns = `id, name, email, role, phone_number, profile_image`
)

type PostgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.PhoneNumber, &u.ProfileImage, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanSummaries(rows pgx.Rows) ([]*user.Summary, error) {
	defer rows.Close()
	var out []*user.Summary
	for rows.Next() {
		var s user.Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Role, &s.PhoneNumber, &s.ProfileImage); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.PhoneNumber, u.ProfileImage, u.CreatedAt, u.UpdatedAt)
	return cerr.WrapDBError("user", err)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, cerr.WrapDBError("user", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, cerr.WrapDBError("user", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetSummaries(ctx context.Context, ids []string) ([]*user.Summary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+summaryColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, cerr.WrapDBError("users", err)
	}
	out, err := scanSummaries(rows)
	return out, cerr.WrapDBError("users", err)
}

func (r *PostgresRepository) ListStaff(ctx context.Context, role permission.Role) ([]*user.Summary, error) {
	roles := permission.StaffRoles
	if role.IsStaff() {
		roles = []permission.Role{role}
	}
	rows, err := r.db.Query(ctx, `SELECT `+summaryColumns+` FROM users WHERE role = ANY($1) ORDER BY name ASC`, roleStrings(roles))
	if err != nil {
		return nil, cerr.WrapDBError("users", err)
	}
	out, err := scanSummaries(rows)
	return out, cerr.WrapDBError("users", err)
}

func (r *PostgresRepository) SearchStaff(ctx context.Context, q string, limit int) ([]*user.Summary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+summaryColumns+` FROM users
		WHERE role = ANY($1) AND (name ILIKE $2 OR email ILIKE $2)
		ORDER BY name ASC
		LIMIT $3`,
		roleStrings(permission.StaffRoles), database.ContainsPattern(q), limit)
	if err != nil {
		return nil, cerr.WrapDBError("users", err)
	}
	out, err := scanSummaries(rows)
	return out, cerr.WrapDBError("users", err)
}

func roleStrings(roles []permission.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
