package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"tululu_parser/internal/db"
	"tululu_parser/internal/models"
)

type fakeCatalog map[int]models.CatalogEntry

func (c fakeCatalog) ListBooks(context.Context) ([]models.CatalogEntry, error) {
	items := []models.CatalogEntry{}
	for id := 1; id <= 100; id++ {
		if e, ok := c[id]; ok {
			items = append(items, e)
		}
	}
	return items, nil
}

func (c fakeCatalog) GetBook(_ context.Context, id int) (models.CatalogEntry, error) {
	e, ok := c[id]
	if !ok {
		return models.CatalogEntry{}, db.ErrNotFound
	}
	return e, nil
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	dir := t.TempDir()
	textPath := filepath.Join(dir, "5.Title.txt")
	if err := os.WriteFile(textPath, []byte("content"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	catalog := fakeCatalog{
		5: {Book: models.Book{ID: 5, Title: "Title", Author: "Author", Genres: []string{"g"}}, TextPath: textPath},
	}
	srv := httptest.NewServer(New(catalog, zaptest.NewLogger(t).Sugar()).Handler())
	t.Cleanup(srv.Close)
	return srv, textPath
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/health")
	if resp.StatusCode != http.StatusOK || string(body) != "{\"ok\":true}\n" {
		t.Fatalf("unexpected health: %d %s", resp.StatusCode, body)
	}
}

func TestListAndGetBooks(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/books")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var items []models.CatalogEntry
	if err := json.Unmarshal(body, &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Title" {
		t.Fatalf("unexpected items: %+v", items)
	}

	resp, body = get(t, srv.URL+"/api/books/5")
	var entry models.CatalogEntry
	if err := json.Unmarshal(body, &entry); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected entry: %d %s", resp.StatusCode, body)
	}
	if entry.Author != "Author" || entry.Genres[0] != "g" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	for path, status := range map[string]int{
		"/api/books/6":   http.StatusNotFound,
		"/api/books/abc": http.StatusBadRequest,
		"/api/books/":    http.StatusBadRequest,
	} {
		if resp, _ := get(t, srv.URL+path); resp.StatusCode != status {
			t.Fatalf("%s: expected %d, got %d", path, status, resp.StatusCode)
		}
	}
}

func TestServeFiles(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := get(t, srv.URL+"/api/files/text/5")
	if resp.StatusCode != http.StatusOK || string(body) != "content" {
		t.Fatalf("unexpected text: %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type: %q", ct)
	}

	if resp, _ := get(t, srv.URL+"/api/files/cover/5"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cover was never downloaded, expected 404, got %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/books", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
