package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/database/databasetest"
)

func TestMigrate_Idempotent(t *testing.T) {
	pool := databasetest.Setup(t)
	require.NoError(t, database.Migrate(context.Background(), pool))
}

func TestInTx_Rollback(t *testing.T) {
	pool := databasetest.Setup(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := database.InTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO users (id, name, email, password_hash) VALUES ('u1', 'a', 'a@example.com', 'x')`)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n))
	assert.Equal(t, 0, n)
}
