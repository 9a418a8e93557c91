package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"tululu_parser/internal/models"
	"tululu_parser/internal/parser"
	"tululu_parser/internal/storage"
)

// DefaultUserAgent is sent when the client is built without one.
const DefaultUserAgent = "tululu-parser/1.0 (+https://tululu.org)"

// ErrRedirected marks a response that went through a redirect.
// The site answers unknown book IDs with a redirect instead of 404.
var ErrRedirected = errors.New("сайт ответил редиректом")

// HTTPError is the single "HTTP failure" category: transport errors, non-2xx statuses
// and redirected responses.
type HTTPError struct {
	URL        string
	StatusCode int
	Redirected bool
	Err        error
}

func (e *HTTPError) Error() string {
	switch {
	case e.Redirected:
		return fmt.Sprintf("%s: редирект (%d), книги нет", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: ошибка сети: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: сервер вернул код %d", e.URL, e.StatusCode)
	}
}

func (e *HTTPError) Unwrap() error {
	if e.Redirected {
		return ErrRedirected
	}
	return e.Err
}

// IsHTTPFailure reports whether err is an HTTP failure.
func IsHTTPFailure(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}

// Page is a fully read successful response.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// LibraryClient talks to the library site through a site adapter.
type LibraryClient struct {
	httpClient *http.Client
	adapter    parser.Adapter
	userAgent  string
}

func NewLibraryClient(client *http.Client, adapter parser.Adapter, userAgent string) *LibraryClient {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &LibraryClient{
		httpClient: client,
		adapter:    adapter,
		userAgent:  userAgent,
	}
}

// Get fetches rawURL with params added to its query. Redirects are followed,
// but a response that was redirected on the way is reported as a failure.
func (s *LibraryClient) Get(ctx context.Context, rawURL string, params url.Values) (*Page, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("запрос %s прерван: %w", target, ctx.Err())
		}
		return nil, &HTTPError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: target, StatusCode: resp.StatusCode}
	}
	if err := CheckForRedirect(resp); err != nil {
		return nil, err
	}

	var bodyBuf bytes.Buffer
	if _, err := io.Copy(&bodyBuf, resp.Body); err != nil {
		return nil, &HTTPError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("ошибка чтения ответа: %w", err)}
	}

	return &Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       bodyBuf.Bytes(),
	}, nil
}

// CheckForRedirect walks the redirect history of resp and fails on any 300..308 hop.
func CheckForRedirect(resp *http.Response) error {
	if resp == nil || resp.Request == nil {
		return nil
	}

	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		hop := req.Response
		if hop.StatusCode >= 300 && hop.StatusCode <= 308 {
			from := ""
			if hop.Request != nil && hop.Request.URL != nil {
				from = hop.Request.URL.String()
			}
			return &HTTPError{URL: from, StatusCode: hop.StatusCode, Redirected: true}
		}
	}
	return nil
}

// FetchBook downloads and parses the detail page of a book.
func (s *LibraryClient) FetchBook(ctx context.Context, bookID int) (models.Book, error) {
	page, err := s.Get(ctx, s.adapter.BookPageURL(bookID), nil)
	if err != nil {
		return models.Book{}, err
	}

	book, err := s.adapter.ParseBookPage(bookID, bytes.NewReader(page.Body))
	if err != nil {
		return models.Book{}, fmt.Errorf("книга %d: %w", bookID, err)
	}
	return book, nil
}

// DownloadText saves the book text as <folder>/<id>.<title>.txt.
func (s *LibraryClient) DownloadText(ctx context.Context, book models.Book, folder string) (string, error) {
	textURL, params := s.adapter.TextURL(book.ID)
	return s.DownloadFile(ctx, textURL, params, book.TextFilename(), folder)
}

// DownloadCover saves the cover image under its original filename.
func (s *LibraryClient) DownloadCover(ctx context.Context, book models.Book, folder string) (string, error) {
	return s.DownloadFile(ctx, book.CoverURL, nil, book.CoverFilename, folder)
}

// DownloadFile fetches rawURL and writes the body to <folder>/<sanitized filename>.
func (s *LibraryClient) DownloadFile(ctx context.Context, rawURL string, params url.Values, filename string, folder string) (string, error) {
	page, err := s.Get(ctx, rawURL, params)
	if err != nil {
		return "", err
	}
	return storage.SaveFile(folder, filename, bytes.NewReader(page.Body))
}

func withParams(rawURL string, params url.Values) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("некорректный URL %q: %w", rawURL, err)
	}

	q := u.Query()
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
