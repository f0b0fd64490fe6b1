package manifest

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/internal/gridding"
	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/database"
)

func integrationStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(context.Background(), config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	s := NewPostgresStore(db.Pool)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	s := integrationStore(t)
	ctx := context.Background()

	// 테스트별 고유 제품명으로 충돌 방지
	product := "TEST_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), "DELETE FROM grid_runs WHERE product = $1", product)
	})

	rec := NewRecord(day1, product, "hash", t0)
	require.NoError(t, s.Save(ctx, rec))
	firstID := rec.ID

	rec2 := NewRecord(day1, product, "hash2", t0)
	rec2.Finish(result([]string{"a.nc"}, []gridding.FileFailure{{Source: "b.nc", Error: "bad"}}, 3), "/out/a.nc", t0.Add(time.Minute))
	require.NoError(t, s.Save(ctx, rec2))
	assert.Equal(t, firstID, rec2.ID, "upsert keeps the first id")

	got, err := s.Get(ctx, day1, product)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, got.Status)
	assert.Equal(t, []string{"a.nc"}, got.FilesOK)
	assert.Equal(t, "b.nc", got.FilesFailed[0].Source)
	require.NotNil(t, got.FinishedAt)

	_, err = s.Get(ctx, day2, product)
	assert.True(t, errors.Is(err, ErrNotFound))

	list, err := s.List(ctx, day1, day2)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}
