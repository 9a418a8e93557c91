package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tululu_parser/internal/models"
)

// ErrNotFound is returned for a book that is not in the catalog.
var ErrNotFound = errors.New("книга не найдена")

// Store is the local catalog of downloaded books.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("путь к SQLite пустой")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию БД: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД: %w", err)
	}
	// Runner workers write concurrently; a single connection serializes them.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragma := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, stmt := range pragma {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка PRAGMA: %w", err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	cover_url TEXT,
	cover_filename TEXT,
	genres TEXT NOT NULL DEFAULT '[]',
	comments TEXT NOT NULL DEFAULT '[]',
	text_path TEXT,
	image_path TEXT,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_books_author ON books(author);
`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("ошибка миграции: %w", err)
	}
	return nil
}

// SaveBook upserts a book together with the paths it was downloaded to.
func (s *Store) SaveBook(ctx context.Context, book models.Book, result models.DownloadResult) error {
	genres, err := json.Marshal(nonNil(book.Genres))
	if err != nil {
		return fmt.Errorf("ошибка сериализации жанров: %w", err)
	}
	comments, err := json.Marshal(nonNil(book.Comments))
	if err != nil {
		return fmt.Errorf("ошибка сериализации отзывов: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO books (id, title, author, cover_url, cover_filename, genres, comments, text_path, image_path, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	author = excluded.author,
	cover_url = excluded.cover_url,
	cover_filename = excluded.cover_filename,
	genres = excluded.genres,
	comments = excluded.comments,
	text_path = COALESCE(NULLIF(excluded.text_path, ''), books.text_path),
	image_path = COALESCE(NULLIF(excluded.image_path, ''), books.image_path),
	updated_at = excluded.updated_at
`, book.ID, book.Title, book.Author, book.CoverURL, book.CoverFilename,
		string(genres), string(comments), result.TextPath, result.ImagePath,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("ошибка upsert книги %d: %w", book.ID, err)
	}
	return nil
}

const selectBooks = `
SELECT id, title, author, COALESCE(cover_url, ''), COALESCE(cover_filename, ''), genres, comments,
	COALESCE(text_path, ''), COALESCE(image_path, ''), updated_at
FROM books
`

func (s *Store) ListBooks(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectBooks+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога: %w", err)
	}
	defer rows.Close()

	items := []models.CatalogEntry{}
	for rows.Next() {
		item, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка rows: %w", err)
	}
	return items, nil
}

func (s *Store) GetBook(ctx context.Context, bookID int) (models.CatalogEntry, error) {
	item, err := scanEntry(s.db.QueryRowContext(ctx, selectBooks+` WHERE id = ?`, bookID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CatalogEntry{}, ErrNotFound
	}
	return item, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (models.CatalogEntry, error) {
	var (
		item      models.CatalogEntry
		genres    string
		comments  string
		updatedAt string
	)
	err := row.Scan(&item.ID, &item.Title, &item.Author, &item.CoverURL, &item.CoverFilename,
		&genres, &comments, &item.TextPath, &item.ImagePath, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CatalogEntry{}, err
		}
		return models.CatalogEntry{}, fmt.Errorf("ошибка скана каталога: %w", err)
	}

	if err := json.Unmarshal([]byte(genres), &item.Genres); err != nil {
		return models.CatalogEntry{}, fmt.Errorf("жанры книги %d: %w", item.ID, err)
	}
	if err := json.Unmarshal([]byte(comments), &item.Comments); err != nil {
		return models.CatalogEntry{}, fmt.Errorf("отзывы книги %d: %w", item.ID, err)
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		item.UpdatedAt = t
	}
	return item, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
