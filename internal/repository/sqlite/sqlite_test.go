package sqlite_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"blogpulse/internal/repository/sqlite"
)

// =============================================================================
// Integration Tests (using a real temporary database)
// =============================================================================

// newTestDB is a helper function that creates a temporary database for a test.
func newTestDB(t *testing.T) *sqlite.Repository {
	t.Helper()

	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := sqlite.NewRepository(context.Background(), logger, dbPath)
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		if err = repo.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	return repo
}

// TestRepository_Integration_Subscriptions simulates the full subscription
// lifecycle against a real SQLite database.
func TestRepository_Integration_Subscriptions(t *testing.T) {
	repo := newTestDB(t)
	ctx := context.Background()

	t.Run("empty database has no subscribers", func(t *testing.T) {
		chats, err := repo.GetSubscribedChats(ctx)
		require.NoError(t, err)
		require.Empty(t, chats)
	})

	t.Run("subscribe two chats", func(t *testing.T) {
		require.NoError(t, repo.SubscribeChat(ctx, 111))
		require.NoError(t, repo.SubscribeChat(ctx, -222))

		chats, err := repo.GetSubscribedChats(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []int64{111, -222}, chats)
	})

	t.Run("subscribing twice is a no-op", func(t *testing.T) {
		require.NoError(t, repo.SubscribeChat(ctx, 111))

		chats, err := repo.GetSubscribedChats(ctx)
		require.NoError(t, err)
		require.Len(t, chats, 2)
	})

	t.Run("unsubscribe removes only the given chat", func(t *testing.T) {
		require.NoError(t, repo.UnsubscribeChat(ctx, 111))

		chats, err := repo.GetSubscribedChats(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []int64{-222}, chats)
	})
}

// =============================================================================
// Unit test helpers (sqlmock for failure scenarios)
// =============================================================================

// newMockedRepo creates a repository with a mocked database connection for testing failures.
func newMockedRepo(t *testing.T) (*sqlite.Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := sqlite.NewForTest(mockDB)

	t.Cleanup(func() { mockDB.Close() })

	return repo, mock
}
