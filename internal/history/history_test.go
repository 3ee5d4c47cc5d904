package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acerrors "github.com/mrz1836/autocompose/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tasks", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordCycle_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2015, 11, 2, 10, 0, 0, 0, time.UTC)
	slot := 1

	err := s.RecordCycle(ctx, Cycle{
		ID:            "cycle-0a1b2c3d",
		Stage:         StageCompose,
		Version:       4,
		StartedAt:     start,
		FinishedAt:    start.Add(12 * time.Minute),
		Success:       true,
		Changed:       true,
		PublishedSlot: &slot,
		Tasks: []Task{
			{Key: "a.json", Success: true, RevisionBefore: "R1", RevisionAfter: "R1", Duration: 90 * time.Second},
			{Key: "b.json", Success: true, Changed: true, RevisionBefore: "R2", RevisionAfter: "R3", Duration: 2 * time.Minute},
		},
	})
	require.NoError(t, err)

	cycles, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cycles, 1)

	c := cycles[0]
	assert.Equal(t, "cycle-0a1b2c3d", c.ID)
	assert.Equal(t, StageCompose, c.Stage)
	assert.Equal(t, 4, c.Version)
	assert.True(t, c.StartedAt.Equal(start))
	assert.True(t, c.Success)
	assert.True(t, c.Changed)
	require.NotNil(t, c.PublishedSlot)
	assert.Equal(t, 1, *c.PublishedSlot)

	require.Len(t, c.Tasks, 2)
	assert.Equal(t, "a.json", c.Tasks[0].Key)
	assert.False(t, c.Tasks[0].Changed)
	assert.Equal(t, "R3", c.Tasks[1].RevisionAfter)
	assert.Equal(t, 2*time.Minute, c.Tasks[1].Duration)
}

func TestRecent_NewestFirstAndLimit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2015, 11, 2, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"c0", "c1", "c2"} {
		require.NoError(t, s.RecordCycle(ctx, Cycle{
			ID:         id,
			Stage:      StageImages,
			Version:    i,
			StartedAt:  start.Add(time.Duration(i) * time.Hour),
			FinishedAt: start.Add(time.Duration(i)*time.Hour + time.Minute),
		}))
	}

	cycles, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "c2", cycles[0].ID)
	assert.Equal(t, "c1", cycles[1].ID)
	assert.Nil(t, cycles[0].PublishedSlot)
	assert.Empty(t, cycles[0].Tasks)

	_, err = s.Recent(ctx, 0)
	require.ErrorIs(t, err, acerrors.ErrInvalidArgument)
}

func TestRecordCycle_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := Cycle{ID: "dup", Stage: StageCompose, StartedAt: time.Now(), FinishedAt: time.Now()}

	require.NoError(t, s.RecordCycle(ctx, c))
	require.Error(t, s.RecordCycle(ctx, c))
}

func TestOpen_ReopensExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.RecordCycle(ctx, Cycle{ID: "x", Stage: StageCompose, StartedAt: time.Now(), FinishedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	cycles, err := s.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}

func TestClose_NilSafe(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
}
