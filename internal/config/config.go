package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

var ErrEmptyBlogsPath = errors.New("error getting BP_BLOGS_PATH: variable contains an empty string")

type Config struct {
	Env       string // Env is the current environment: local, dev, prod.
	BlogsPath string // BlogsPath points to the YAML blog registry.
	DataDir   string // DataDir holds the snapshot archive and diff results.
	OutputDir string // OutputDir holds the generated newsletters.

	Scraper Scraper
	OpenAI  OpenAI
	Tg      Telegram
}

type Scraper struct {
	Timeout  time.Duration // Timeout is the per-request HTTP timeout.
	Attempts int           // Attempts is the total number of tries per URL.
}

type OpenAI struct {
	APIKey  string // APIKey is optional; without it the fallback renderer is used.
	Model   string
	Timeout time.Duration
}

type Telegram struct {
	Token       string        // Token is optional; without it newsletter delivery is disabled.
	Timeout     time.Duration // Timeout is a poller timeout duration.
	StoragePath string        // StoragePath is the sqlite file holding subscriptions.
}

// MustLoad loads the configuration from environment variables and returns a
// Config struct. It panics when the blog registry path is explicitly blanked.
func MustLoad() *Config {
	// Automatically binds environment variables to config keys
	viper.SetEnvPrefix("BP")
	viper.AutomaticEnv()

	// optional args
	viper.SetDefault("ENV", "production")
	viper.SetDefault("BLOGS_PATH", "data/blogs.yaml")
	viper.SetDefault("DATA_DIR", "data")
	viper.SetDefault("OUTPUT_DIR", "output")
	viper.SetDefault("HTTP_TIMEOUT", "30s")
	viper.SetDefault("RETRY_ATTEMPTS", 3)
	viper.SetDefault("OPENAI_MODEL", "gpt-4-turbo")
	viper.SetDefault("OPENAI_TIMEOUT", "90s")
	viper.SetDefault("TELEGRAM_TIMEOUT", "15s")
	viper.SetDefault("STORAGE_PATH", "data/blogpulse.db")

	if viper.GetString("BLOGS_PATH") == "" {
		panic(ErrEmptyBlogsPath)
	}

	return &Config{
		Env:       viper.GetString("ENV"),
		BlogsPath: viper.GetString("BLOGS_PATH"),
		DataDir:   viper.GetString("DATA_DIR"),
		OutputDir: viper.GetString("OUTPUT_DIR"),
		Scraper: Scraper{
			Timeout:  viper.GetDuration("HTTP_TIMEOUT"),
			Attempts: viper.GetInt("RETRY_ATTEMPTS"),
		},
		OpenAI: OpenAI{
			APIKey:  viper.GetString("OPENAI_API_KEY"),
			Model:   viper.GetString("OPENAI_MODEL"),
			Timeout: viper.GetDuration("OPENAI_TIMEOUT"),
		},
		Tg: Telegram{
			Token:       viper.GetString("TELEGRAM_TOKEN"),
			Timeout:     viper.GetDuration("TELEGRAM_TIMEOUT"),
			StoragePath: viper.GetString("STORAGE_PATH"),
		},
	}
}
