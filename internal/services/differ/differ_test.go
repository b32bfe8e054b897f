package differ

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"blogpulse/internal/extractor"
	"blogpulse/internal/models"
	"blogpulse/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockStore is a testify mock for the SnapshotStore collaborator.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Snapshot(ctx context.Context, domain, date string) (string, error) {
	args := m.Called(ctx, domain, date)
	return args.String(0), args.Error(1)
}

func (m *mockStore) PreviousSnapshot(ctx context.Context, domain, before string) (string, string, error) {
	args := m.Called(ctx, domain, before)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockStore) SaveDiff(ctx context.Context, result *models.DiffResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Comparator tests
// =============================================================================

func TestCompare(t *testing.T) {
	articleA := models.Article{Title: "A", URL: "https://x.test/a", Content: "alpha"}
	articleAEdited := models.Article{Title: "A", URL: "https://x.test/a", Content: "alpha v2"}
	articleB := models.Article{Title: "B", Content: "beta"}
	articleC := models.Article{Title: "C", URL: "https://x.test/c", Content: "gamma"}

	testCases := []struct {
		name            string
		previous        []models.Article
		current         []models.Article
		expectedNew     []models.Article
		expectedChanged []models.ChangedArticle
		expectedRemoved []models.Article
	}{
		{
			name:        "all new when previous is empty",
			previous:    nil,
			current:     []models.Article{articleA, articleB},
			expectedNew: []models.Article{articleA, articleB},
		},
		{
			name:     "changed content produces both versions",
			previous: []models.Article{articleA},
			current:  []models.Article{articleAEdited},
			expectedChanged: []models.ChangedArticle{
				{
					Title:           "A",
					URL:             "https://x.test/a",
					PreviousContent: "alpha",
					CurrentContent:  "alpha v2",
				},
			},
		},
		{
			name:            "removed article reported from previous side",
			previous:        []models.Article{articleA, articleB},
			current:         []models.Article{articleA},
			expectedRemoved: []models.Article{articleB},
		},
		{
			name:     "unchanged articles dropped entirely",
			previous: []models.Article{articleA, articleB},
			current:  []models.Article{articleA, articleB},
		},
		{
			name:            "mixed classification",
			previous:        []models.Article{articleA, articleB},
			current:         []models.Article{articleAEdited, articleC},
			expectedNew:     []models.Article{articleC},
			expectedChanged: []models.ChangedArticle{{Title: "A", URL: "https://x.test/a", PreviousContent: "alpha", CurrentContent: "alpha v2"}},
			expectedRemoved: []models.Article{articleB},
		},
		{
			name:     "content missing on one side counts as changed",
			previous: []models.Article{{Title: "A", URL: "https://x.test/a"}},
			current:  []models.Article{articleA},
			expectedChanged: []models.ChangedArticle{
				{Title: "A", URL: "https://x.test/a", PreviousContent: "", CurrentContent: "alpha"},
			},
		},
		{
			name:     "duplicate keys within one snapshot: last write wins",
			previous: []models.Article{articleA},
			current: []models.Article{
				{Title: "A", URL: "https://x.test/a", Content: "draft"},
				{Title: "A", URL: "https://x.test/a", Content: "alpha"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			newArts, changed, removed := compare(tc.previous, tc.current)

			assert.Equal(t, tc.expectedNew, newArts)
			assert.Equal(t, tc.expectedChanged, changed)
			assert.Equal(t, tc.expectedRemoved, removed)
		})
	}
}

// Every identity key appears in at most one output list.
func TestCompare_KeyTotality(t *testing.T) {
	previous := []models.Article{
		{Title: "kept", Content: "same"},
		{Title: "edited", Content: "v1"},
		{Title: "gone", Content: "old"},
	}
	current := []models.Article{
		{Title: "kept", Content: "same"},
		{Title: "edited", Content: "v2"},
		{Title: "fresh", Content: "new"},
	}

	newArts, changed, removed := compare(previous, current)

	seen := map[string]int{}
	for _, art := range newArts {
		seen[art.Key()]++
	}
	for _, art := range changed {
		key := art.URL
		if key == "" {
			key = art.Title
		}
		seen[key]++
	}
	for _, art := range removed {
		seen[art.Key()]++
	}

	for key, count := range seen {
		assert.Equal(t, 1, count, "key %q classified more than once", key)
	}
	assert.NotContains(t, seen, "kept") // unchanged keys appear nowhere
}

// URL takes priority over title as the identity key, so a renamed article
// with a stable URL is a change, not a remove+add.
func TestCompare_URLIdentity(t *testing.T) {
	previous := []models.Article{{Title: "Old Title", URL: "https://x.test/p", Content: "body"}}
	current := []models.Article{{Title: "New Title", URL: "https://x.test/p", Content: "body v2"}}

	newArts, changed, removed := compare(previous, current)

	assert.Empty(t, newArts)
	assert.Empty(t, removed)
	require.Len(t, changed, 1)
	assert.Equal(t, "New Title", changed[0].Title)
}

// =============================================================================
// GenerateDiff tests
// =============================================================================

func TestGenerateDiff(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	blog := models.Blog{
		Name:     "Example Engineering",
		URL:      "https://www.example.com/blog",
		Category: "engineering",
	}

	currentHTML := `
	<html><body>
		<article><h2><a href="/a">Article One Stays</a></h2><p>same body</p></article>
		<article><h2><a href="/b">Article Two Evolves</a></h2><p>new body</p></article>
		<article><h2><a href="/c">Article Three Appears</a></h2><p>fresh body</p></article>
	</body></html>`

	previousHTML := `
	<html><body>
		<article><h2><a href="/a">Article One Stays</a></h2><p>same body</p></article>
		<article><h2><a href="/b">Article Two Evolves</a></h2><p>old body</p></article>
		<article><h2><a href="/d">Article Four Vanishes</a></h2><p>gone body</p></article>
	</body></html>`

	testCases := []struct {
		name        string
		setupMocks  func(mStore *mockStore)
		check       func(t *testing.T, result *models.DiffResult)
		expectError bool
	}{
		{
			name: "no previous snapshot: everything is new",
			setupMocks: func(mStore *mockStore) {
				mStore.On("Snapshot", ctx, "example.com", "2025-04-05").Return(currentHTML, nil).Once()
				mStore.On("PreviousSnapshot", ctx, "example.com", "2025-04-05").
					Return("", "", repository.ErrSnapshotNotFound).Once()
				mStore.On("SaveDiff", ctx, mock.AnythingOfType("*models.DiffResult")).Return(nil).Once()
			},
			check: func(t *testing.T, result *models.DiffResult) {
				assert.Len(t, result.NewArticles, 3)
				assert.Empty(t, result.ChangedArticles)
				assert.Empty(t, result.RemovedArticles)
				assert.Empty(t, result.PreviousDate)
				assert.True(t, result.HasChanges)
			},
		},
		{
			name: "previous snapshot present: full classification",
			setupMocks: func(mStore *mockStore) {
				mStore.On("Snapshot", ctx, "example.com", "2025-04-05").Return(currentHTML, nil).Once()
				mStore.On("PreviousSnapshot", ctx, "example.com", "2025-04-05").
					Return(previousHTML, "2025-03-29", nil).Once()
				mStore.On("SaveDiff", ctx, mock.AnythingOfType("*models.DiffResult")).Return(nil).Once()
			},
			check: func(t *testing.T, result *models.DiffResult) {
				assert.Equal(t, "2025-03-29", result.PreviousDate)
				require.Len(t, result.NewArticles, 1)
				assert.Equal(t, "Article Three Appears", result.NewArticles[0].Title)
				require.Len(t, result.ChangedArticles, 1)
				assert.Equal(t, "Article Two Evolves", result.ChangedArticles[0].Title)
				assert.Equal(t, "old body", result.ChangedArticles[0].PreviousContent)
				assert.Equal(t, "new body", result.ChangedArticles[0].CurrentContent)
				require.Len(t, result.RemovedArticles, 1)
				assert.Equal(t, "Article Four Vanishes", result.RemovedArticles[0].Title)
				assert.True(t, result.HasChanges)
			},
		},
		{
			name: "identical snapshots: no changes",
			setupMocks: func(mStore *mockStore) {
				mStore.On("Snapshot", ctx, "example.com", "2025-04-05").Return(currentHTML, nil).Once()
				mStore.On("PreviousSnapshot", ctx, "example.com", "2025-04-05").
					Return(currentHTML, "2025-03-29", nil).Once()
				mStore.On("SaveDiff", ctx, mock.AnythingOfType("*models.DiffResult")).Return(nil).Once()
			},
			check: func(t *testing.T, result *models.DiffResult) {
				assert.False(t, result.HasChanges)
				assert.Empty(t, result.NewArticles)
				assert.Empty(t, result.ChangedArticles)
				assert.Empty(t, result.RemovedArticles)
			},
		},
		{
			name: "missing current snapshot is an error",
			setupMocks: func(mStore *mockStore) {
				mStore.On("Snapshot", ctx, "example.com", "2025-04-05").
					Return("", repository.ErrSnapshotNotFound).Once()
			},
			expectError: true,
		},
		{
			name: "persistence failure propagates",
			setupMocks: func(mStore *mockStore) {
				mStore.On("Snapshot", ctx, "example.com", "2025-04-05").Return(currentHTML, nil).Once()
				mStore.On("PreviousSnapshot", ctx, "example.com", "2025-04-05").
					Return("", "", repository.ErrSnapshotNotFound).Once()
				mStore.On("SaveDiff", ctx, mock.Anything).Return(errors.New("disk full")).Once()
			},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mStore := &mockStore{}
			tc.setupMocks(mStore)

			d := New(logger, extractor.New(logger), mStore)

			result, err := d.GenerateDiff(ctx, blog, "2025-04-05")

			if tc.expectError {
				require.Error(t, err)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				require.NotNil(t, result)

				// Blog metadata is stamped on every result.
				assert.Equal(t, "https://www.example.com/blog", result.URL)
				assert.Equal(t, "example.com", result.Domain)
				assert.Equal(t, "Example Engineering", result.BlogName)
				assert.Equal(t, "engineering", result.Category)
				assert.Equal(t, "2025-04-05", result.CurrentDate)

				tc.check(t, result)
			}

			mStore.AssertExpectations(t)
		})
	}
}

// The missing-current-snapshot error keeps its sentinel so callers can
// distinguish it from infrastructure failures.
func TestGenerateDiff_NotFoundSentinel(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	mStore := &mockStore{}
	mStore.On("Snapshot", ctx, "example.com", "2025-04-05").
		Return("", repository.ErrSnapshotNotFound).Once()

	d := New(logger, extractor.New(logger), mStore)

	_, err := d.GenerateDiff(ctx, models.Blog{URL: "https://example.com"}, "2025-04-05")

	require.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	mStore.AssertExpectations(t)
}
