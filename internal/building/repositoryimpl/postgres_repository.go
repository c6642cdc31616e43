package repositoryimpl

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kazz187/buildingdesk/internal/building"
	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/user"
	"github.com/kazz187/buildingdesk/pkg/cerr"
)

const buildingColumns = `id, name, address, floors, year_built, total_area, description, status, image_url,
	admin_manager_id, biz_manager_id, created_at, updated_at`

type PostgresRepository struct {
	db database.DBTX
}

func NewPostgresRepository(db database.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ building.Repository = (*PostgresRepository)(nil)

func scanBuilding(row pgx.Row) (*building.Building, error) {
	var b building.Building
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.Floors, &b.YearBuilt, &b.TotalArea, &b.Description, &b.Status,
		&b.ImageURL, &b.AdminManagerID, &b.BizManagerID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PostgresRepository) Create(ctx context.Context, b *building.Building, managerIDs []string) error {
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO buildings (`+buildingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			b.ID, b.Name, b.Address, b.Floors, b.YearBuilt, b.TotalArea, b.Description, b.Status, b.ImageURL,
			b.AdminManagerID, b.BizManagerID, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return err
		}
		return insertManagers(ctx, tx, b.ID, managerIDs)
	})
	return cerr.WrapDBError("building", err)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*building.Building, error) {
	b, err := scanBuilding(r.db.QueryRow(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = $1`, id))
	if err != nil {
		return nil, cerr.WrapDBError("building", err)
	}
	return b, nil
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*building.Building, error) {
	b, err := scanBuilding(r.db.QueryRow(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, cerr.WrapDBError("building", err)
	}
	return b, nil
}

func (r *PostgresRepository) GetDetail(ctx context.Context, id string) (*building.Detail, error) {
	b, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	details := []*building.Detail{{Building: b}}
	if err := r.attachRelations(ctx, details); err != nil {
		return nil, err
	}
	return details[0], nil
}

func (r *PostgresRepository) List(ctx context.Context, filter building.ListFilter) ([]*building.Detail, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" && filter.Status != "all" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, database.ContainsPattern(filter.Search))
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR address ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + buildingColumns + ` FROM buildings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, cerr.WrapDBError("buildings", err)
	}
	defer rows.Close()
	var details []*building.Detail
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, cerr.WrapDBError("buildings", err)
		}
		details = append(details, &building.Detail{Building: b})
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapDBError("buildings", err)
	}
	if err := r.attachRelations(ctx, details); err != nil {
		return nil, err
	}
	return details, nil
}

func (r *PostgresRepository) Update(ctx context.Context, b *building.Building, managerIDs []string) error {
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE buildings
			SET name = $2, address = $3, floors = $4, year_built = $5, total_area = $6, description = $7,
				status = $8, image_url = $9, updated_at = $10
			WHERE id = $1`,
			b.ID, b.Name, b.Address, b.Floors, b.YearBuilt, b.TotalArea, b.Description, b.Status, b.ImageURL, b.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return cerr.NewError(cerr.NotFound, "building not found", nil)
		}
		if managerIDs == nil {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM building_managers WHERE building_id = $1`, b.ID); err != nil {
			return err
		}
		return insertManagers(ctx, tx, b.ID, managerIDs)
	})
	return cerr.WrapDBError("building", err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM buildings WHERE id = $1`, id)
	if err != nil {
		return cerr.WrapDBError("building", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "building not found", nil)
	}
	return nil
}

func (r *PostgresRepository) SetResponsibles(ctx context.Context, id string, adminManagerID, bizManagerID *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE buildings SET admin_manager_id = $2, biz_manager_id = $3, updated_at = now()
		WHERE id = $1`,
		id, adminManagerID, bizManagerID)
	if err != nil {
		return cerr.WrapDBError("building", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "building not found", nil)
	}
	return nil
}

func (r *PostgresRepository) ReplaceManagers(ctx context.Context, id string, userIDs []string) error {
	err := database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM building_managers WHERE building_id = $1`, id); err != nil {
			return err
		}
		return insertManagers(ctx, tx, id, userIDs)
	})
	return cerr.WrapDBError("building manager", err)
}

func insertManagers(ctx context.Context, tx pgx.Tx, buildingID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO building_managers (building_id, user_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`,
		buildingID, userIDs)
	return err
}

// attachRelations resolves managers and responsible users for details in two queries.
func (r *PostgresRepository) attachRelations(ctx context.Context, details []*building.Detail) error {
	if len(details) == 0 {
		return nil
	}
	byID := make(map[string]*building.Detail, len(details))
	ids := make([]string, 0, len(details))
	responsibleIDs := make([]string, 0)
	for _, d := range details {
		d.Managers = []*user.Summary{}
		byID[d.ID] = d
		ids = append(ids, d.ID)
		for _, rid := range []*string{d.AdminManagerID, d.BizManagerID} {
			if rid != nil {
				responsibleIDs = append(responsibleIDs, *rid)
			}
		}
	}

	rows, err := r.db.Query(ctx, `
		SELECT bm.building_id, u.id, u.name, u.email, u.role, u.phone_number, u.profile_image
		FROM building_managers bm
		JOIN users u ON u.id = bm.user_id
		WHERE bm.building_id = ANY($1)
		ORDER BY u.name ASC`, ids)
	if err != nil {
		return cerr.WrapDBError("building managers", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			buildingID string
			s          user.Summary
		)
		if err := rows.Scan(&buildingID, &s.ID, &s.Name, &s.Email, &s.Role, &s.PhoneNumber, &s.ProfileImage); err != nil {
			return cerr.WrapDBError("building managers", err)
		}
		if d, ok := byID[buildingID]; ok {
			d.Managers = append(d.Managers, &s)
		}
	}
	if err := rows.Err(); err != nil {
		return cerr.WrapDBError("building managers", err)
	}

	if len(responsibleIDs) == 0 {
		return nil
	}
	summaries, err := r.summaries(ctx, responsibleIDs)
	if err != nil {
		return err
	}
	for _, d := range details {
		if d.AdminManagerID != nil {
			d.AdminManager = summaries[*d.AdminManagerID]
		}
		if d.BizManagerID != nil {
			d.BizManager = summaries[*d.BizManagerID]
		}
	}
	return nil
}

func (r *PostgresRepository) summaries(ctx context.Context, ids []string) (map[string]*user.Summary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, email, role, phone_number, profile_image FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, cerr.WrapDBError("users", err)
	}
	defer rows.Close()
	out := make(map[string]*user.Summary, len(ids))
	for rows.Next() {
		var s user.Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Role, &s.PhoneNumber, &s.ProfileImage); err != nil {
			return nil, cerr.WrapDBError("users", err)
		}
		out[s.ID] = &s
	}
	return out, cerr.WrapDBError("users", rows.Err())
}
