package parser

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tululu_parser/internal/models"
)

// ParseError reports a page that lacks a required piece of markup.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("разбор страницы: поле %s: %s", e.Field, e.Reason)
}

// SplitTitleAuthor splits a "<title> :: <author>" heading at the first delimiter
// and trims both halves.
func SplitTitleAuthor(text string, delimiter string) (string, string, error) {
	if delimiter == "" {
		delimiter = TululuSelectors.TitleDelimiter
	}

	title, author, ok := strings.Cut(text, delimiter)
	if !ok {
		return "", "", &ParseError{Field: "title", Reason: fmt.Sprintf("нет разделителя %q в %q", delimiter, strings.TrimSpace(text))}
	}
	return strings.TrimSpace(title), strings.TrimSpace(author), nil
}

// FilenameFromURL returns the percent-decoded last path segment of rawURL.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("некорректный URL %q: %w", rawURL, err)
	}

	// The escaped form keeps an encoded "/" inside the last segment.
	name := path.Base(u.EscapedPath())
	if name == "/" || name == "." {
		return "", fmt.Errorf("в URL %q нет имени файла", rawURL)
	}

	decoded, err := url.PathUnescape(name)
	if err != nil {
		return "", fmt.Errorf("некорректное имя файла в %q: %w", rawURL, err)
	}
	return decoded, nil
}

// ParseBookPage extracts a book record from a detail page.
// Title, author and cover are required; genres and comments may be absent.
func ParseBookPage(body io.Reader, bookID int, base *url.URL, sel Selectors) (models.Book, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return models.Book{}, fmt.Errorf("ошибка чтения HTML: %w", err)
	}

	book := models.Book{ID: bookID}

	heading := doc.Find(sel.TitleCell).First().Find(sel.TitleHeading).First()
	if heading.Length() == 0 {
		return models.Book{}, &ParseError{Field: "title", Reason: "нет заголовка " + sel.TitleCell + " " + sel.TitleHeading}
	}
	book.Title, book.Author, err = SplitTitleAuthor(heading.Text(), sel.TitleDelimiter)
	if err != nil {
		return models.Book{}, err
	}

	book.CoverURL, book.CoverFilename, err = parseCover(doc, base, sel)
	if err != nil {
		return models.Book{}, err
	}

	book.Genres = []string{}
	doc.Find(sel.GenreContainer).First().Find(sel.GenreLink).Each(func(_ int, a *goquery.Selection) {
		if genre := strings.TrimSpace(a.Text()); genre != "" {
			book.Genres = append(book.Genres, genre)
		}
	})

	book.Comments = []string{}
	doc.Find(sel.CommentBlock).Each(func(_ int, block *goquery.Selection) {
		text := block.Find(sel.CommentText).First()
		if text.Length() == 0 {
			return
		}
		book.Comments = append(book.Comments, text.Text())
	})

	return book, nil
}

func parseCover(doc *goquery.Document, base *url.URL, sel Selectors) (string, string, error) {
	container := doc.Find(sel.CoverContainer).First()
	if container.Length() == 0 {
		return "", "", &ParseError{Field: "cover", Reason: "нет блока " + sel.CoverContainer}
	}

	src, ok := container.Find(sel.CoverImage).First().Attr("src")
	src = strings.TrimSpace(src)
	if !ok || src == "" {
		return "", "", &ParseError{Field: "cover", Reason: "у обложки нет src"}
	}

	ref, err := url.Parse(src)
	if err != nil {
		return "", "", &ParseError{Field: "cover", Reason: fmt.Sprintf("некорректный src %q", src)}
	}
	coverURL := ref.String()
	if base != nil {
		coverURL = base.ResolveReference(ref).String()
	}

	filename, err := FilenameFromURL(coverURL)
	if err != nil {
		return "", "", &ParseError{Field: "cover", Reason: err.Error()}
	}
	return coverURL, filename, nil
}
