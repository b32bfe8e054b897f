package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blogpulse/internal/bot"
	"blogpulse/internal/config"
	"blogpulse/internal/extractor"
	"blogpulse/internal/models"
	"blogpulse/internal/newsletter"
	"blogpulse/internal/repository/archive"
	"blogpulse/internal/repository/sqlite"
	"blogpulse/internal/scraper"
	"blogpulse/internal/services/differ"

	"github.com/joho/godotenv"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const dateLayout = "2006-01-02"

// main is the entry point of the application: one batch run over the blog
// registry, typically scheduled via cron.
func main() {
	// Create a context that will be canceled when an interrupt signal is
	// received, so a long run can be aborted cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A local .env file is optional; deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("Pipeline failed", "error", err)
		os.Exit(1)
	}
}

// run executes the full pipeline: fetch every blog, snapshot it, diff it
// against its previous snapshot, then compile and deliver the newsletter.
func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	currentDate := time.Now().Format(dateLayout)
	logger.InfoContext(ctx, "Starting blog newsletter generation", "date", currentDate)

	store := archive.New(logger, cfg.DataDir, cfg.OutputDir)
	if err := store.Setup(); err != nil {
		return fmt.Errorf("failed to set up data directories: %w", err)
	}

	blogs, err := config.LoadBlogs(cfg.BlogsPath)
	if err != nil {
		return fmt.Errorf("failed to load blog registry: %w", err)
	}
	logger.InfoContext(ctx, "Loaded blog registry", "blogs", len(blogs))

	scr := scraper.New(logger, cfg.Scraper.Timeout, cfg.Scraper.Attempts)
	diff := differ.New(logger, extractor.New(logger), store)

	// Blogs are independent of each other; an error in one never aborts the
	// run, it just drops that blog from this issue.
	var results []*models.DiffResult
	for _, blog := range blogs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, blogErr := processBlog(ctx, logger, scr, store, diff, blog, currentDate)
		if blogErr != nil {
			logger.ErrorContext(ctx, "Failed to process blog", "blog", blog.Name, "error", blogErr)
			continue
		}

		if result.HasChanges {
			logger.InfoContext(ctx, "Found changes", "blog", blog.Name)
			results = append(results, result)
		} else {
			logger.InfoContext(ctx, "No changes found", "blog", blog.Name)
		}
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "No blog updates found, skipping newsletter generation")
		return nil
	}

	gen := newsletter.NewGenerator(logger, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	content := gen.Generate(ctx, results, currentDate)

	path, err := store.WriteNewsletter(ctx, currentDate, content)
	if err != nil {
		return fmt.Errorf("failed to save newsletter: %w", err)
	}
	logger.InfoContext(ctx, "Newsletter saved", "path", path)

	if cfg.Tg.Token != "" {
		if err = deliver(ctx, logger, cfg, content); err != nil {
			// Delivery is best-effort; the newsletter is already on disk.
			logger.ErrorContext(ctx, "Newsletter delivery failed", "error", err)
		}
	}

	logger.InfoContext(ctx, "Blog newsletter generation completed successfully")

	return nil
}

// processBlog runs the fetch -> snapshot -> diff chain for a single blog.
func processBlog(
	ctx context.Context,
	logger *slog.Logger,
	scr *scraper.Scraper,
	store *archive.Archive,
	diff *differ.Differ,
	blog models.Blog,
	currentDate string,
) (*models.DiffResult, error) {
	logger.InfoContext(ctx, "Scraping blog", "blog", blog.Name, "url", blog.URL)

	markup, err := scr.Fetch(ctx, blog.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", blog.URL, err)
	}

	if err = store.SaveSnapshot(ctx, scraper.Domain(blog.URL), currentDate, markup); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	result, err := diff.GenerateDiff(ctx, blog, currentDate)
	if err != nil {
		return nil, fmt.Errorf("failed to generate diff: %w", err)
	}

	return result, nil
}

// deliver sends the generated newsletter to subscribed Telegram chats. The
// bot poller runs only for the duration of the batch so subscription
// commands issued meanwhile are still processed.
func deliver(ctx context.Context, logger *slog.Logger, cfg *config.Config, content string) error {
	repo, err := sqlite.NewRepository(ctx, logger, cfg.Tg.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to open subscription storage: %w", err)
	}
	defer repo.Close()

	tgBot, err := bot.NewBot(logger, repo, cfg.Tg.Token, cfg.Tg.Timeout)
	if err != nil {
		return fmt.Errorf("failed to init bot: %w", err)
	}

	go tgBot.Start()
	defer tgBot.Stop()

	return tgBot.Notify(ctx, content)
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelError,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
