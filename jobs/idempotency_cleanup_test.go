package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeIdempotencyStore struct {
	err        error
	retentions []time.Duration
}

func (f *fakeIdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.retentions = append(f.retentions, olderThan)
	return nil
}

func cleanupTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewIdempotencyCleanupTask(time.Time{})
	require.NoError(t, err)
	return task
}

func TestIdempotencyCleanupPrunesWithRetention(t *testing.T) {
	store := &fakeIdempotencyStore{}
	cleaner := &IdempotencyCleaner{store: store, logger: slog.Default()}

	require.NoError(t, cleaner.Handle(context.Background(), cleanupTask(t)))

	require.Equal(t, []time.Duration{24 * time.Hour}, store.retentions)
}

func TestIdempotencyCleanupPropagatesStoreFailure(t *testing.T) {
	store := &fakeIdempotencyStore{err: errors.New("db down")}
	cleaner := &IdempotencyCleaner{store: store, logger: slog.Default()}

	err := cleaner.Handle(context.Background(), cleanupTask(t))

	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestIdempotencyCleanupSkipsMalformedPayload(t *testing.T) {
	store := &fakeIdempotencyStore{}
	cleaner := &IdempotencyCleaner{store: store, logger: slog.Default()}

	err := cleaner.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte("{")))

	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, store.retentions)
}
