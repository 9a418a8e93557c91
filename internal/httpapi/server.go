package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tululu_parser/internal/db"
	"tululu_parser/internal/models"
)

// Catalog is the read side of the book catalog.
type Catalog interface {
	ListBooks(ctx context.Context) ([]models.CatalogEntry, error)
	GetBook(ctx context.Context, bookID int) (models.CatalogEntry, error)
}

// Server exposes the catalog and the downloaded files over HTTP.
type Server struct {
	catalog Catalog
	log     *zap.SugaredLogger
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func New(catalog Catalog, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		catalog: catalog,
		log:     log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/books", s.handleBooks)
	mux.HandleFunc("/api/books/", s.handleBook)
	mux.HandleFunc("/api/files/text/", s.handleFile(func(e models.CatalogEntry) string { return e.TextPath }))
	mux.HandleFunc("/api/files/cover/", s.handleFile(func(e models.CatalogEntry) string { return e.ImagePath }))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)
		s.log.Infow("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "ua", r.UserAgent())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	items, err := s.catalog.ListBooks(r.Context())
	if err != nil {
		s.log.Errorw("catalog: list failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db error"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	entry, ok := s.lookup(w, r, strings.TrimPrefix(r.URL.Path, "/api/books/"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleFile(pick func(models.CatalogEntry) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}

		// /api/files/<kind>/<id>
		idStr := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		entry, ok := s.lookup(w, r, idStr)
		if !ok {
			return
		}

		path := pick(entry)
		if path == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "файл не скачан"})
			return
		}

		setContentType(w, path)
		http.ServeFile(w, r, path)
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, idStr string) (models.CatalogEntry, bool) {
	if idStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "book id пустой"})
		return models.CatalogEntry{}, false
	}
	bookID, err := strconv.Atoi(idStr)
	if err != nil || bookID < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "book id некорректен"})
		return models.CatalogEntry{}, false
	}

	entry, err := s.catalog.GetBook(r.Context(), bookID)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "книга не найдена"})
		return models.CatalogEntry{}, false
	}
	if err != nil {
		s.log.Errorw("catalog: get failed", "book_id", bookID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db error"})
		return models.CatalogEntry{}, false
	}
	return entry, true
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func setContentType(w http.ResponseWriter, path string) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case ".jpg", ".jpeg":
		w.Header().Set("Content-Type", "image/jpeg")
	case ".png":
		w.Header().Set("Content-Type", "image/png")
	case ".gif":
		w.Header().Set("Content-Type", "image/gif")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
}
