package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config — все настройки приложения одной пачкой.
type Config struct {
	LibraryURL string
	UserAgent  string

	DestFolder string
	BooksDir   string
	ImagesDir  string

	// SQLitePath enables the catalog when set.
	SQLitePath string

	TorProxyAddr       string
	VerifyCertificates bool
	HTTPTimeout        time.Duration
	Workers            int

	HTTPAddr string

	TelegramToken  string
	TelegramChatID int64
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// .env is optional: in Docker the variables come from the environment directly.
	_ = godotenv.Load()

	verify, err := parseBool("VERIFY_CERTS", true)
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration("HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("WORKERS", 1)
	if err != nil {
		return nil, err
	}

	chatID, err := parseInt64("TELEGRAM_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LibraryURL:         withDefault(os.Getenv("TULULU_URL"), "https://tululu.org"),
		UserAgent:          os.Getenv("USER_AGENT"),
		DestFolder:         withDefault(os.Getenv("DEST_FOLDER"), "."),
		BooksDir:           withDefault(os.Getenv("BOOKS_DIR"), "books"),
		ImagesDir:          withDefault(os.Getenv("IMAGES_DIR"), "images"),
		SQLitePath:         strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		TorProxyAddr:       strings.TrimSpace(os.Getenv("TOR_PROXY")),
		VerifyCertificates: verify,
		HTTPTimeout:        timeout,
		Workers:            workers,
		HTTPAddr:           withDefault(os.Getenv("HTTP_ADDR"), ":8080"),
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		TelegramChatID:     chatID,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks combinations that can also be broken by command-line flags.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS должно быть не меньше 1, получено %d", c.Workers)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT должен быть положительным")
	}
	if (c.TelegramToken == "") != (c.TelegramChatID == 0) {
		return fmt.Errorf("TELEGRAM_TOKEN и TELEGRAM_CHAT_ID задаются только вместе")
	}
	return nil
}

// BooksPath is the folder book texts are saved to.
func (c *Config) BooksPath() string {
	return resolvePath(c.DestFolder, c.BooksDir)
}

// ImagesPath is the folder covers are saved to.
func (c *Config) ImagesPath() string {
	return resolvePath(c.DestFolder, c.ImagesDir)
}

// TelegramEnabled reports whether run summaries should be sent.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func withDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// resolvePath puts relative p under base; absolute paths are kept.
func resolvePath(base string, p string) string {
	p = strings.TrimSpace(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func parseBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("переменная %s: ожидается true/false, получено %q", key, raw)
	}
	return v, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("переменная %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	v, err := parseInt64(key, int64(fallback))
	return int(v), err
}

func parseInt64(key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("переменная %s: ожидается число, получено %q", key, raw)
	}
	return v, nil
}
