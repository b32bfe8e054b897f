package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"blogpulse/internal/models"
	"blogpulse/internal/repository"
)

const dirPerm = 0o755

// Archive stores page snapshots, diff results and generated newsletters on
// disk. Snapshots live under <data>/archive/<domain>/<date>.html, diff
// results under <data>/diffs/<domain>/<date>.json and newsletters under
// <output>/newsletters/<date>.md.
type Archive struct {
	log       *slog.Logger
	dataDir   string
	outputDir string
}

func New(log *slog.Logger, dataDir, outputDir string) *Archive {
	return &Archive{log: log, dataDir: dataDir, outputDir: outputDir}
}

// Setup creates the directory layout. It is an explicit initialization step
// invoked once from the entry point, never implicitly on write.
func (a *Archive) Setup() error {
	dirs := []string{
		a.dataDir,
		filepath.Join(a.dataDir, "archive"),
		filepath.Join(a.dataDir, "diffs"),
		a.outputDir,
		filepath.Join(a.outputDir, "newsletters"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SaveSnapshot writes one fetched page keyed by domain and run date.
func (a *Archive) SaveSnapshot(ctx context.Context, domain, date, markup string) error {
	const opn = "repository.archive.SaveSnapshot"

	dir := filepath.Join(a.dataDir, "archive", domain)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%s: failed to create archive directory: %w", opn, err)
	}

	path := filepath.Join(dir, date+".html")
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		return fmt.Errorf("%s: failed to write snapshot: %w", opn, err)
	}

	a.log.InfoContext(ctx, "Saved snapshot", "path", path)

	return nil
}

// Snapshot returns the stored page for (domain, date), or
// repository.ErrSnapshotNotFound when no such file exists.
func (a *Archive) Snapshot(_ context.Context, domain, date string) (string, error) {
	const opn = "repository.archive.Snapshot"

	path := filepath.Join(a.dataDir, "archive", domain, date+".html")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", repository.ErrSnapshotNotFound
		}
		return "", fmt.Errorf("%s: failed to read snapshot %s: %w", opn, path, err)
	}

	return string(data), nil
}

// PreviousSnapshot returns the most recent snapshot of the domain strictly
// older than the given date, together with that snapshot's date. When no
// history exists it returns repository.ErrSnapshotNotFound.
//
// Snapshot filenames are YYYY-MM-DD.html, so lexicographic order is
// chronological order.
func (a *Archive) PreviousSnapshot(ctx context.Context, domain, before string) (string, string, error) {
	const opn = "repository.archive.PreviousSnapshot"

	dir := filepath.Join(a.dataDir, "archive", domain)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", repository.ErrSnapshotNotFound
		}
		return "", "", fmt.Errorf("%s: failed to list archive for %s: %w", opn, domain, err)
	}

	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".html") {
			continue
		}
		date := strings.TrimSuffix(name, ".html")
		if date < before {
			dates = append(dates, date)
		}
	}
	if len(dates) == 0 {
		return "", "", repository.ErrSnapshotNotFound
	}

	sort.Strings(dates)
	previousDate := dates[len(dates)-1]

	content, err := a.Snapshot(ctx, domain, previousDate)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", opn, err)
	}

	return content, previousDate, nil
}

// SaveDiff persists a diff result keyed by its domain and current date.
func (a *Archive) SaveDiff(ctx context.Context, result *models.DiffResult) error {
	const opn = "repository.archive.SaveDiff"

	dir := filepath.Join(a.dataDir, "diffs", result.Domain)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%s: failed to create diffs directory: %w", opn, err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: failed to marshal diff result: %w", opn, err)
	}

	path := filepath.Join(dir, result.CurrentDate+".json")
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: failed to write diff result: %w", opn, err)
	}

	a.log.InfoContext(ctx, "Saved diff result", "path", path)

	return nil
}

// WriteNewsletter stores a generated newsletter and returns its path.
func (a *Archive) WriteNewsletter(ctx context.Context, date, content string) (string, error) {
	const opn = "repository.archive.WriteNewsletter"

	dir := filepath.Join(a.outputDir, "newsletters")
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%s: failed to create newsletters directory: %w", opn, err)
	}

	path := filepath.Join(dir, date+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("%s: failed to write newsletter: %w", opn, err)
	}

	a.log.InfoContext(ctx, "Saved newsletter", "path", path)

	return path, nil
}
