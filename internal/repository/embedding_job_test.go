//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantpilot/grantpilot/internal/domain"
	"github.com/grantpilot/grantpilot/internal/testutil"
)

// seedJob creates a chunk and a pending embedding job for it.
func seedJob(ctx context.Context, t *testing.T, chunks *ChunkRepository, jobs *EmbeddingJobRepository, createdAt time.Time) *domain.EmbeddingJob {
	t.Helper()
	chunk := newChunk("scope-a", "doc-1", "pending embedding text", nil)
	require.NoError(t, chunks.Create(ctx, chunk))

	job := domain.NewEmbeddingJob(uuid.NewString(), chunk.ID, createdAt)
	require.NoError(t, jobs.Create(ctx, job))
	return job
}

func TestEmbeddingJobRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunks := NewChunkRepository(pool)
	jobs := NewEmbeddingJobRepository(pool)

	job := seedJob(ctx, t, chunks, jobs, time.Now().UTC().Truncate(time.Microsecond))

	retrieved, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ChunkID, retrieved.ChunkID)
	assert.Equal(t, domain.EmbeddingJobStatusPending, retrieved.Status)
	assert.Zero(t, retrieved.Retries)
	assert.Nil(t, retrieved.ProcessedAt)
}

func TestEmbeddingJobRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	jobs := NewEmbeddingJobRepository(pool)

	_, err := jobs.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrEmbeddingJobNotFound)
}

func TestEmbeddingJobRepository_GetPendingJobs_ClaimsOnce(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunks := NewChunkRepository(pool)
	jobs := NewEmbeddingJobRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	older := seedJob(ctx, t, chunks, jobs, base.Add(-time.Minute))
	newer := seedJob(ctx, t, chunks, jobs, base)

	claimed, err := jobs.GetPendingJobs(ctx)
	require.NoError(t, err)

	require.Len(t, claimed, 2)
	assert.Equal(t, older.ID, claimed[0].ID)
	assert.Equal(t, newer.ID, claimed[1].ID)
	for _, j := range claimed {
		assert.Equal(t, domain.EmbeddingJobStatusProcessing, j.Status)
	}

	// Claimed jobs are no longer pending.
	again, err := jobs.GetPendingJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestEmbeddingJobRepository_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunks := NewChunkRepository(pool)
	jobs := NewEmbeddingJobRepository(pool)

	job := seedJob(ctx, t, chunks, jobs, time.Now().UTC())

	require.NoError(t, jobs.UpdateJobStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, "provider unavailable"))

	updated, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingJobStatusFailed, updated.Status)
	assert.Equal(t, "provider unavailable", updated.Error)
	assert.NotNil(t, updated.ProcessedAt)

	assert.ErrorIs(t, jobs.UpdateJobStatus(ctx, uuid.NewString(), domain.EmbeddingJobStatusCompleted, ""), ErrEmbeddingJobNotFound)
}

func TestEmbeddingJobRepository_IncrementRetries(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	chunks := NewChunkRepository(pool)
	jobs := NewEmbeddingJobRepository(pool)

	job := seedJob(ctx, t, chunks, jobs, time.Now().UTC())

	require.NoError(t, jobs.IncrementRetries(ctx, job.ID))
	require.NoError(t, jobs.IncrementRetries(ctx, job.ID))

	updated, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), updated.Retries)

	assert.ErrorIs(t, jobs.IncrementRetries(ctx, uuid.NewString()), ErrEmbeddingJobNotFound)
}
