package sietch

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a throwaway Postgres and returns a pool connected to it
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("tableapi_test"),
		postgres.WithUsername("tableapi"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresStore_Integration(t *testing.T) {
	pool := setupPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	def := itemsDef()
	require.NoError(t, CreateTable(ctx, pool, def))

	store, err := NewPostgresStore(pool, def)
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, Row{"id": int64(1), "name": "a", "companyId": int64(7), "updatedAt": int64(10)}))
	require.NoError(t, store.Create(ctx, Row{"id": int64(2), "name": "b", "parentId": int64(1), "updatedAt": int64(20)}))

	err = store.Create(ctx, Row{"id": int64(3), "name": "a", "updatedAt": int64(30)})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	err = store.Create(ctx, Row{"id": int64(4), "parentId": int64(99), "updatedAt": int64(40)})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	require.NoError(t, store.Update(ctx, 2, Row{"deletedAt": int64(50), "updatedAt": int64(50)}))

	rows, err := store.Find(ctx, &Query{
		Filter: &Filter{Conditions: []Condition{IsNull("deletedAt")}},
		Order:  []Order{{Field: "id"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, int64(7), rows[0]["companyId"])

	n, err := store.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := store.Exists(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}
