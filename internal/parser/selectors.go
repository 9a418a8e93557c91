package parser

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"tululu_parser/internal/models"
)

// Selectors is the markup table a book page is parsed with.
// Every CSS selector for a site lives here and nowhere else.
type Selectors struct {
	// TitleCell contains TitleHeading, whose text is "<title> <TitleDelimiter> <author>".
	TitleCell      string
	TitleHeading   string
	TitleDelimiter string

	CoverContainer string
	CoverImage     string

	GenreContainer string
	GenreLink      string

	// CommentBlock is matched across the whole page, CommentText inside each block.
	CommentBlock string
	CommentText  string
}

// TululuSelectors matches the book pages of tululu.org.
var TululuSelectors = Selectors{
	TitleCell:      "td.ow_px_td",
	TitleHeading:   "h1",
	TitleDelimiter: "::",
	CoverContainer: "div.bookimage",
	CoverImage:     "img",
	GenreContainer: "span.d_book",
	GenreLink:      "a",
	CommentBlock:   "div.texts",
	CommentText:    "span",
}

// DefaultLibraryURL is the site the tool was written for.
const DefaultLibraryURL = "https://tululu.org"

// Adapter hides one site's URL layout and markup behind a stable contract.
type Adapter interface {
	// BookPageURL is the detail page of a book.
	BookPageURL(id int) string
	// TextURL is the text download endpoint with its query parameters.
	TextURL(id int) (string, url.Values)
	// ParseBookPage extracts the book record from a detail page.
	ParseBookPage(id int, body io.Reader) (models.Book, error)
}

// HTMLAdapter is an Adapter for sites that lay out books as
// "<base>/b<id>/" pages and serve text from "<base>/txt.php?id=<id>".
type HTMLAdapter struct {
	baseURL   *url.URL
	selectors Selectors
}

// NewHTMLAdapter parses baseURL and binds it to a selector table.
func NewHTMLAdapter(baseURL string, selectors Selectors) (*HTMLAdapter, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("некорректный адрес библиотеки %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("адрес библиотеки должен быть абсолютным: %q", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &HTMLAdapter{baseURL: u, selectors: selectors}, nil
}

// NewTululuAdapter returns the adapter for tululu.org (or a mirror of it).
func NewTululuAdapter(baseURL string) (*HTMLAdapter, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultLibraryURL
	}
	return NewHTMLAdapter(baseURL, TululuSelectors)
}

func (a *HTMLAdapter) BookPageURL(id int) string {
	return a.baseURL.ResolveReference(&url.URL{Path: "b" + strconv.Itoa(id) + "/"}).String()
}

func (a *HTMLAdapter) TextURL(id int) (string, url.Values) {
	params := url.Values{}
	params.Set("id", strconv.Itoa(id))
	return a.baseURL.ResolveReference(&url.URL{Path: "txt.php"}).String(), params
}

func (a *HTMLAdapter) ParseBookPage(id int, body io.Reader) (models.Book, error) {
	return ParseBookPage(body, id, a.baseURL, a.selectors)
}
