package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/store"
)

// setupTestDB starts a throwaway Postgres container and applies the migrations
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	if testing.Short() {
		t.Skip("postgres container tests are skipped in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(dsn, "../../../migrations")
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		s.Close()
		container.Terminate(ctx)
	}

	return s, cleanup
}

func TestConvertPlaceholders(t *testing.T) {
	got := convertPlaceholders("SELECT * FROM t WHERE a = ? AND b IN (?, ?)")
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", got)
}

func TestPostgresCandidates(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("sequence is race free", func(t *testing.T) {
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			seen = map[int64]bool{}
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := s.NextCandidateSequence(ctx)
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				assert.False(t, seen[n], "sequence value %d handed out twice", n)
				seen[n] = true
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 20)
	})

	t.Run("duplicate username is a conflict", func(t *testing.T) {
		c := models.Candidate{Username: "cand01", PasswordHash: "h", Password: "abc12", CreatedAt: 1}
		require.NoError(t, s.CreateCandidate(ctx, &c))

		dup := c
		err := s.CreateCandidate(ctx, &dup)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("mark issued", func(t *testing.T) {
		n, err := s.MarkIssued(ctx, []string{"cand01"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := s.GetCandidate(ctx, "cand01")
		require.NoError(t, err)
		assert.True(t, got.Issued)
		assert.Equal(t, "abc12", got.Password)
	})
}

func TestPostgresResults(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	r := models.ExamResult{
		Username:    "cand01",
		FullName:    "Test User",
		Subject:     "biology",
		Score:       75,
		Correct:     30,
		Total:       40,
		Answered:    38,
		TimeTaken:   600,
		SubmittedAt: time.Date(2025, 10, 5, 12, 0, 0, 0, time.UTC),
		Status:      models.StatusCompleted,
	}
	id, err := s.CreateResult(ctx, &r)
	require.NoError(t, err)

	got, err := s.LatestResult(ctx, "cand01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.True(t, r.SubmittedAt.Equal(got.SubmittedAt))

	list, err := s.ListResults(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
