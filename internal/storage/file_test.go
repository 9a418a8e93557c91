package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFilename(t *testing.T) {
	got, err := SanitizeFilename("Book: Part/2")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if strings.ContainsAny(got, `/:*`) {
		t.Fatalf("illegal characters left in %q", got)
	}
	if got != "Book Part2" {
		t.Fatalf("unexpected name: %q", got)
	}

	got, _ = SanitizeFilename(`5.Что? "Где"* <Когда>|.txt`)
	if got != "5.Что Где Когда.txt" {
		t.Fatalf("unexpected name: %q", got)
	}
}

func TestSanitizeFilenameEdgeCases(t *testing.T) {
	if _, err := SanitizeFilename(" /:*. "); err == nil {
		t.Fatal("expected error for name with nothing left")
	}

	got, _ := SanitizeFilename("con.txt")
	if got != "_con.txt" {
		t.Fatalf("reserved name not escaped: %q", got)
	}

	got, _ = SanitizeFilename("trailing dots...")
	if got != "trailing dots" {
		t.Fatalf("unexpected name: %q", got)
	}

	long := strings.Repeat("я", 200)
	got, _ = SanitizeFilename(long)
	if len(got) > maxFilenameBytes || !strings.HasPrefix(long, got) {
		t.Fatalf("bad truncation: %d bytes", len(got))
	}

	title := "5." + strings.Repeat("я", 130) + ".txt"
	got, err := SanitizeFilename(title)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(got) > maxFilenameBytes || !strings.HasSuffix(got, ".txt") || !strings.HasPrefix(got, "5.яя") {
		t.Fatalf("extension lost on truncation: %q (%d bytes)", got, len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}

	if _, err := SanitizeFilename("..."); !errors.Is(err, ErrInvalidFilename) {
		t.Fatalf("expected ErrInvalidFilename, got %v", err)
	}
}

func TestSaveFile(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "books")

	path, err := SaveFile(folder, "5.Book: Part/2.txt", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if path != filepath.Join(folder, "5.Book Part2.txt") {
		t.Fatalf("unexpected path: %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("unexpected content: %q", data)
	}
}
