package repositoryimpl

import (
	"context"

	"github.com/jackc/pgx/v5"

	buildingrepo "github.com/kazz187/buildingdesk/internal/building/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/responsibility"
	taskrepo "github.com/kazz187/buildingdesk/internal/task/repositoryimpl"
)

// PostgresUnitOfWork binds the building and task repositories to one pgx transaction.
type PostgresUnitOfWork struct {
	db database.DBTX
}

func NewPostgresUnitOfWork(db database.DBTX) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

var _ responsibility.UnitOfWork = (*PostgresUnitOfWork)(nil)

func (u *PostgresUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx responsibility.Tx) error) error {
	return database.InTx(ctx, u.db, func(tx pgx.Tx) error {
		return fn(ctx, &postgresTx{
			buildings: buildingrepo.NewPostgresRepository(tx),
			tasks:     taskrepo.NewPostgresRepository(tx),
		})
	})
}

type postgresTx struct {
	buildings *buildingrepo.PostgresRepository
	tasks     *taskrepo.PostgresRepository
}

func (t *postgresTx) Buildings() responsibility.BuildingStore {
	return t.buildings
}

func (t *postgresTx) Tasks() responsibility.TaskStore {
	return t.tasks
}
