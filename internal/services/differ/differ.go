package differ

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blogpulse/internal/models"
	"blogpulse/internal/repository"
	"blogpulse/internal/scraper"
)

// SnapshotStore is the persistence collaborator: it loads archived page
// snapshots and stores the produced diff results.
type SnapshotStore interface {
	// Snapshot returns the stored page for (domain, date), or
	// repository.ErrSnapshotNotFound.
	Snapshot(ctx context.Context, domain, date string) (string, error)
	// PreviousSnapshot returns the most recent snapshot strictly older than
	// the given date and its date, or repository.ErrSnapshotNotFound when no
	// history exists.
	PreviousSnapshot(ctx context.Context, domain, before string) (string, string, error)
	// SaveDiff persists a diff result keyed by (domain, current date).
	SaveDiff(ctx context.Context, result *models.DiffResult) error
}

// ArticleExtractor parses one markup snapshot into article records.
type ArticleExtractor interface {
	Extract(markup string) []models.Article
}

// Differ builds the diff result for one blog and one run date.
type Differ struct {
	log       *slog.Logger
	extractor ArticleExtractor
	store     SnapshotStore
}

func New(log *slog.Logger, extractor ArticleExtractor, store SnapshotStore) *Differ {
	return &Differ{log: log, extractor: extractor, store: store}
}

// GenerateDiff compares the blog's current snapshot against the most recent
// older one, classifies every article as new, changed or removed, persists
// the result and returns it. A missing current snapshot is an error (the
// caller logs and skips the blog); a missing previous snapshot means every
// extracted article is new.
func (d *Differ) GenerateDiff(ctx context.Context, blog models.Blog, currentDate string) (*models.DiffResult, error) {
	const opn = "differ.GenerateDiff"
	log := d.log.With("op", opn, "blog", blog.Name)

	domain := scraper.Domain(blog.URL)

	current, err := d.store.Snapshot(ctx, domain, currentDate)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load current snapshot for %s: %w", opn, domain, err)
	}

	result := &models.DiffResult{
		URL:         blog.URL,
		Domain:      domain,
		BlogName:    blog.Name,
		BlogURL:     blog.URL,
		Category:    blog.Category,
		CurrentDate: currentDate,
	}

	previous, previousDate, err := d.store.PreviousSnapshot(ctx, domain, currentDate)
	switch {
	case errors.Is(err, repository.ErrSnapshotNotFound):
		log.InfoContext(ctx, "No previous snapshot found, treating everything as new")
		result.NewArticles = d.extractor.Extract(current)
	case err != nil:
		return nil, fmt.Errorf("%s: failed to locate previous snapshot for %s: %w", opn, domain, err)
	default:
		result.PreviousDate = previousDate
		result.NewArticles, result.ChangedArticles, result.RemovedArticles = compare(
			d.extractor.Extract(previous),
			d.extractor.Extract(current),
		)
	}

	result.HasChanges = len(result.NewArticles) > 0 ||
		len(result.ChangedArticles) > 0 ||
		len(result.RemovedArticles) > 0

	if err = d.store.SaveDiff(ctx, result); err != nil {
		return nil, fmt.Errorf("%s: failed to persist diff result: %w", opn, err)
	}

	log.InfoContext(ctx, "Diff generated",
		"new", len(result.NewArticles),
		"changed", len(result.ChangedArticles),
		"removed", len(result.RemovedArticles),
		"previous_date", result.PreviousDate,
	)

	return result, nil
}

// compare aligns two article lists by identity key. Keys only in current are
// new; keys on both sides with differing content are changed; keys only in
// previous are removed. Articles whose content is identical on both sides
// are dropped entirely.
func compare(previous, current []models.Article) ([]models.Article, []models.ChangedArticle, []models.Article) {
	prevMap, prevKeys := keyMap(previous)
	currMap, currKeys := keyMap(current)

	var (
		newArticles     []models.Article
		changedArticles []models.ChangedArticle
		removedArticles []models.Article
	)

	for _, key := range currKeys {
		curr := currMap[key]
		prev, found := prevMap[key]
		if !found {
			newArticles = append(newArticles, curr)
			continue
		}
		if curr.Content != prev.Content {
			changedArticles = append(changedArticles, models.ChangedArticle{
				Title:           curr.Title,
				URL:             curr.URL,
				PreviousContent: prev.Content,
				CurrentContent:  curr.Content,
			})
		}
	}

	for _, key := range prevKeys {
		if _, found := currMap[key]; !found {
			removedArticles = append(removedArticles, prevMap[key])
		}
	}

	return newArticles, changedArticles, removedArticles
}

// keyMap indexes articles by identity key. Duplicate keys within one
// snapshot overwrite earlier entries (last write wins); the returned key
// slice preserves first-seen order so callers produce deterministic output.
func keyMap(articles []models.Article) (map[string]models.Article, []string) {
	index := make(map[string]models.Article, len(articles))
	keys := make([]string, 0, len(articles))

	for _, art := range articles {
		key := art.Key()
		if _, seen := index[key]; !seen {
			keys = append(keys, key)
		}
		index[key] = art
	}

	return index, keys
}
