package archive_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"blogpulse/internal/models"
	"blogpulse/internal/repository"
	"blogpulse/internal/repository/archive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestArchive creates an archive rooted in a temporary directory.
func newTestArchive(t *testing.T) *archive.Archive {
	t.Helper()

	tempDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := archive.New(logger, filepath.Join(tempDir, "data"), filepath.Join(tempDir, "output"))
	require.NoError(t, store.Setup())

	return store
}

func TestArchive_Setup(t *testing.T) {
	tempDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := archive.New(logger, filepath.Join(tempDir, "data"), filepath.Join(tempDir, "output"))
	require.NoError(t, store.Setup())

	for _, dir := range []string{
		filepath.Join(tempDir, "data", "archive"),
		filepath.Join(tempDir, "data", "diffs"),
		filepath.Join(tempDir, "output", "newsletters"),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Setup is idempotent.
	require.NoError(t, store.Setup())
}

func TestArchive_SnapshotRoundTrip(t *testing.T) {
	store := newTestArchive(t)
	ctx := context.Background()

	const markup = "<html><body><article><h2>Post</h2></article></body></html>"

	t.Run("missing snapshot yields sentinel", func(t *testing.T) {
		_, err := store.Snapshot(ctx, "example.com", "2025-04-05")
		require.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	})

	t.Run("save and read back", func(t *testing.T) {
		require.NoError(t, store.SaveSnapshot(ctx, "example.com", "2025-04-05", markup))

		content, err := store.Snapshot(ctx, "example.com", "2025-04-05")
		require.NoError(t, err)
		assert.Equal(t, markup, content)
	})

	t.Run("domains are isolated", func(t *testing.T) {
		_, err := store.Snapshot(ctx, "other.test", "2025-04-05")
		require.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	})
}

func TestArchive_PreviousSnapshot(t *testing.T) {
	store := newTestArchive(t)
	ctx := context.Background()

	t.Run("no history at all", func(t *testing.T) {
		_, _, err := store.PreviousSnapshot(ctx, "example.com", "2025-04-05")
		require.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	})

	require.NoError(t, store.SaveSnapshot(ctx, "example.com", "2025-03-22", "march 22"))
	require.NoError(t, store.SaveSnapshot(ctx, "example.com", "2025-03-29", "march 29"))
	require.NoError(t, store.SaveSnapshot(ctx, "example.com", "2025-04-05", "april 5"))

	t.Run("picks the most recent strictly older snapshot", func(t *testing.T) {
		content, date, err := store.PreviousSnapshot(ctx, "example.com", "2025-04-05")
		require.NoError(t, err)
		assert.Equal(t, "2025-03-29", date)
		assert.Equal(t, "march 29", content)
	})

	t.Run("never returns the current date itself", func(t *testing.T) {
		content, date, err := store.PreviousSnapshot(ctx, "example.com", "2025-03-29")
		require.NoError(t, err)
		assert.Equal(t, "2025-03-22", date)
		assert.Equal(t, "march 22", content)
	})

	t.Run("only newer snapshots exist", func(t *testing.T) {
		_, _, err := store.PreviousSnapshot(ctx, "example.com", "2025-03-22")
		require.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	})
}

func TestArchive_SaveDiff(t *testing.T) {
	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := archive.New(logger, dataDir, filepath.Join(tempDir, "output"))
	require.NoError(t, store.Setup())
	ctx := context.Background()

	result := &models.DiffResult{
		URL:         "https://example.com/blog",
		Domain:      "example.com",
		BlogName:    "Example",
		Category:    "engineering",
		CurrentDate: "2025-04-05",
		HasChanges:  true,
		NewArticles: []models.Article{
			{Title: "Fresh Post", URL: "/fresh", Content: "body"},
		},
		ChangedArticles: []models.ChangedArticle{
			{Title: "Edited Post", URL: "/edited", PreviousContent: "v1", CurrentContent: "v2"},
		},
	}

	require.NoError(t, store.SaveDiff(ctx, result))

	// The persisted record is keyed by (domain, current date) and reads back
	// into an identical structure.
	data, err := os.ReadFile(filepath.Join(dataDir, "diffs", "example.com", "2025-04-05.json"))
	require.NoError(t, err)

	var restored models.DiffResult
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, *result, restored)
}

func TestArchive_WriteNewsletter(t *testing.T) {
	store := newTestArchive(t)
	ctx := context.Background()

	const content = "# Tech Blog Newsletter\n\nHello.\n"

	path, err := store.WriteNewsletter(ctx, "2025-04-05", content)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-05.md", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}
