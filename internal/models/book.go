package models

import (
	"fmt"
	"time"
)

// Book is the metadata extracted from a single book page.
type Book struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`

	// CoverURL is always absolute.
	CoverURL string `json:"cover_url"`
	// CoverFilename is the percent-decoded last path segment of CoverURL.
	CoverFilename string `json:"cover_filename"`

	Genres   []string `json:"genres"`
	Comments []string `json:"comments"`
}

// TextFilename is the name the book text is saved under: "<id>.<title>.txt".
func (b Book) TextFilename() string {
	return fmt.Sprintf("%d.%s.txt", b.ID, b.Title)
}

// DownloadResult holds the paths written for one book.
// An empty path means that download was disabled.
type DownloadResult struct {
	BookID    int    `json:"book_id"`
	TextPath  string `json:"text_path,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// CatalogEntry is a book as recorded in the local catalog.
type CatalogEntry struct {
	Book
	TextPath  string    `json:"text_path,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
