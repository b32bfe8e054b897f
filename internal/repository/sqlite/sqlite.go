package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// SubscriptionRepository is the storage contract used by the delivery bot.
type SubscriptionRepository interface {
	SubscribeChat(ctx context.Context, chatID int64) error
	UnsubscribeChat(ctx context.Context, chatID int64) error
	GetSubscribedChats(ctx context.Context) ([]int64, error)
}

// Repository stores newsletter subscriptions in a local sqlite database.
type Repository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRepository opens (or creates) the database file at storagePath and runs
// the initial schema migration.
func NewRepository(ctx context.Context, log *slog.Logger, storagePath string) (*Repository, error) {
	dtb, err := sql.Open("sqlite3", fmt.Sprintf("%s?_pragma=foreign_keys(1)", storagePath))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Check if the connection is actually established.
	if err = dtb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("unable to establish connection to database: %w", err)
	}

	if err = initSchema(ctx, dtb); err != nil {
		return nil, fmt.Errorf("DB schema initialization error: %w", err)
	}

	return &Repository{db: dtb, log: log}, nil
}

// NewForTest wraps an existing database handle; used by tests with sqlmock.
func NewForTest(db *sql.DB) *Repository {
	return &Repository{db: db, log: slog.Default()}
}

// initSchema creates the necessary tables if they don't already exist.
func initSchema(ctx context.Context, dtb *sql.DB) error {
	const migrationQuery = `
	CREATE TABLE IF NOT EXISTS subscriptions (
		chat_id INTEGER PRIMARY KEY NOT NULL
	);
	`
	_, err := dtb.ExecContext(ctx, migrationQuery)
	if err != nil {
		return fmt.Errorf("failed to execute migration query: %w", err)
	}

	return nil
}

// Close closes the connection to the database.
func (r *Repository) Close() error {
	if err := r.db.Close(); err != nil {
		r.log.Error("failed to close the database", "op", "repository.sqlite.Close", "error", err)
		return fmt.Errorf("failed to close the database: %w", err)
	}

	return nil
}

// DB is a getter for database handler.
func (r *Repository) DB() *sql.DB {
	return r.db
}
