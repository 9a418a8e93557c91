package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxFilenameBytes = 255

// Characters rejected by at least one of the common filesystems.
const invalidFilenameChars = `\/:*?"<>|`

// ErrInvalidFilename means nothing usable was left of a name after sanitizing.
var ErrInvalidFilename = errors.New("недопустимое имя файла")

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename makes name safe to use as a single path component.
func SanitizeFilename(name string) (string, error) {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r < 0x20 || r == 0x7f || r == utf8.RuneError || strings.ContainsRune(invalidFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	clean := strings.TrimSpace(b.String())
	clean = strings.TrimRight(clean, ". ")
	if clean == "" {
		return "", fmt.Errorf("имя файла %q пустое после очистки: %w", name, ErrInvalidFilename)
	}

	stem := strings.ToUpper(strings.SplitN(clean, ".", 2)[0])
	if _, ok := reservedNames[stem]; ok {
		clean = "_" + clean
	}

	return truncateName(clean, maxFilenameBytes), nil
}

// truncateName shortens the stem and keeps the extension.
func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= limit || len(ext) == len(name) {
		return truncateBytes(name, limit)
	}
	stem := strings.TrimRight(truncateBytes(strings.TrimSuffix(name, ext), limit-len(ext)), ". ")
	if stem == "" {
		return truncateBytes(name, limit)
	}
	return stem + ext
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// SaveFile writes data to <folder>/<sanitized filename>, creating folder when needed,
// and returns the written path.
func SaveFile(folder string, filename string, data io.Reader) (string, error) {
	cleanName, err := SanitizeFilename(filename)
	if err != nil {
		return "", err
	}

	if folder == "" {
		folder = "."
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("не удалось создать директорию %s: %w", folder, err)
	}

	fullPath := filepath.Join(folder, cleanName)

	out, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("не удалось создать файл: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, data); err != nil {
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("ошибка записи данных: %w", err)
	}
	return fullPath, nil
}
