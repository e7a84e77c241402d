//go:build integration

package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/trustify/backend/internal/models"
	"github.com/trustify/backend/internal/repository"
	"github.com/trustify/backend/pkg/database"
)

func TestBackfill_RiverEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("trustify"),
		postgres.WithUsername("trustify"),
		postgres.WithPassword("trustify"),
		postgres.WithInitScripts(filepath.Join("..", "repository", "testdata", "schema.sql")),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	versions, err := Migrate(ctx, pool, discardLogger)
	require.NoError(t, err)
	assert.NotEmpty(t, versions)

	repo := repository.NewPostgresItemsRepository(pool)

	for _, text := range []string{"first pending item", "second pending item"} {
		_, err := repo.UpsertTextItem(ctx, models.UpsertTextItemRequest{SessionID: "river", Text: text})
		require.NoError(t, err)
	}

	vec := make([]float32, models.EmbeddingDimensions)
	vec[0] = 1

	worker := NewEmbeddingWorker(EmbeddingWorkerDeps{
		EmbeddingClient: &fakeEmbedder{vec: vec},
		Updater:         repo,
		Logger:          discardLogger,
	})

	client, err := NewRiverClient(pool, worker, ClientConfig{MaxWorkers: 1, MaxAttempts: 1, Logger: discardLogger})
	require.NoError(t, err)

	events, cancelEvents := Subscribe(client, 2)
	defer cancelEvents()

	require.NoError(t, client.Start(ctx))
	t.Cleanup(func() { _ = client.Stop(context.Background()) })

	inserter := NewRiverJobInserter(client, 1)

	stats, err := Backfill(ctx, repo, inserter, BackfillParams{}, discardLogger)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Enqueued)

	wait, err := WaitForJobs(ctx, events, stats.JobIDs, client, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, wait.Completed)

	remaining, err := repo.ListItemsMissingEmbedding(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
