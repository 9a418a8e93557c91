package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tululu_parser/internal/models"
	"tululu_parser/internal/parser"
	"tululu_parser/internal/service"
	"tululu_parser/internal/storage"
)

// Library is the part of the site client the runner needs.
type Library interface {
	FetchBook(ctx context.Context, bookID int) (models.Book, error)
	DownloadText(ctx context.Context, book models.Book, folder string) (string, error)
	DownloadCover(ctx context.Context, book models.Book, folder string) (string, error)
}

// Catalog records successfully downloaded books.
type Catalog interface {
	SaveBook(ctx context.Context, book models.Book, result models.DownloadResult) error
}

// Options controls where files go and what is downloaded.
type Options struct {
	BooksDir   string
	ImagesDir  string
	SkipText   bool
	SkipImages bool

	// Workers is the number of book IDs processed at once. Values below 1 mean 1.
	Workers int

	// Progress receives a progress bar when set.
	Progress io.Writer
}

// Report summarizes a run. Downloaded and Skipped are ordered by book ID.
type Report struct {
	Downloaded []models.DownloadResult
	Skipped    []int
	Failed     map[int]error
}

// Runner walks a range of book IDs: fetch page, parse, download cover and text.
type Runner struct {
	library Library
	catalog Catalog
	opts    Options
	log     *zap.SugaredLogger
}

func NewRunner(library Library, catalog Catalog, opts Options, log *zap.SugaredLogger) *Runner {
	if opts.BooksDir == "" {
		opts.BooksDir = "books"
	}
	if opts.ImagesDir == "" {
		opts.ImagesDir = "images"
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{
		library: library,
		catalog: catalog,
		opts:    opts,
		log:     log,
	}
}

type outcome struct {
	result  models.DownloadResult
	skipped bool
	failed  error
	fatal   error
}

// Run processes every ID in [start, end]. HTTP failures skip the ID, parse failures and
// unusable file names are recorded in Report.Failed; any other error stops the run.
func (r *Runner) Run(parent context.Context, start, end int) (Report, error) {
	if start < 1 || end < start {
		return Report{}, fmt.Errorf("некорректный диапазон книг: %d..%d", start, end)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	total := end - start + 1
	outcomes := make([]outcome, total)
	bar := r.newProgressBar(total)

	sem := semaphore.NewWeighted(int64(r.opts.Workers))
	var (
		wg       sync.WaitGroup
		fatalMu  sync.Mutex
		fatalErr error
	)

	for i := 0; i < total; i++ {
		// Acquire in the loop so IDs start in order; with one worker this is fully sequential.
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			out := r.processBook(ctx, start+i)
			outcomes[i] = out
			if bar != nil {
				_ = bar.Add(1)
			}

			if out.fatal != nil {
				fatalMu.Lock()
				if fatalErr == nil {
					fatalErr = out.fatal
				}
				fatalMu.Unlock()
				cancel()
			}
		}(i)
	}
	wg.Wait()

	if bar != nil {
		_ = bar.Finish()
	}

	report := Report{
		Downloaded: []models.DownloadResult{},
		Skipped:    []int{},
		Failed:     map[int]error{},
	}
	for i, out := range outcomes {
		switch {
		case out.skipped:
			report.Skipped = append(report.Skipped, start+i)
		case out.failed != nil:
			report.Failed[start+i] = out.failed
		case out.result.BookID != 0:
			report.Downloaded = append(report.Downloaded, out.result)
		}
	}

	if fatalErr != nil {
		return report, fatalErr
	}
	if err := parent.Err(); err != nil {
		return report, fmt.Errorf("обработка прервана: %w", err)
	}
	return report, nil
}

func (r *Runner) processBook(ctx context.Context, bookID int) outcome {
	if ctx.Err() != nil {
		return outcome{}
	}

	book, err := r.library.FetchBook(ctx, bookID)
	switch {
	case err == nil:
	case service.IsHTTPFailure(err):
		r.log.Debugw("книга пропущена", "book_id", bookID, "error", err)
		return outcome{skipped: true}
	case isParseError(err):
		r.log.Warnw("не удалось разобрать страницу книги", "book_id", bookID, "error", err)
		return outcome{failed: err}
	default:
		return outcome{fatal: err}
	}

	result, err := r.download(ctx, book)
	if err != nil {
		if service.IsHTTPFailure(err) {
			r.log.Debugw("файл книги недоступен, книга пропущена", "book_id", bookID, "error", err)
			return outcome{skipped: true}
		}
		err = fmt.Errorf("книга %d: %w", bookID, err)
		if errors.Is(err, storage.ErrInvalidFilename) {
			r.log.Warnw("не удалось сохранить файл книги", "book_id", bookID, "error", err)
			return outcome{failed: err}
		}
		return outcome{fatal: err}
	}

	if r.catalog != nil {
		if err := r.catalog.SaveBook(ctx, book, result); err != nil {
			return outcome{fatal: err}
		}
	}

	r.log.Infow("книга скачана", "book_id", bookID, "title", book.Title, "author", book.Author,
		"text", result.TextPath, "image", result.ImagePath)
	return outcome{result: result}
}

// download fetches the cover first, then the text.
func (r *Runner) download(ctx context.Context, book models.Book) (models.DownloadResult, error) {
	result := models.DownloadResult{BookID: book.ID}

	if !r.opts.SkipImages {
		path, err := r.library.DownloadCover(ctx, book, r.opts.ImagesDir)
		if err != nil {
			return models.DownloadResult{}, err
		}
		result.ImagePath = path
	}

	if !r.opts.SkipText {
		path, err := r.library.DownloadText(ctx, book, r.opts.BooksDir)
		if err != nil {
			return models.DownloadResult{}, err
		}
		result.TextPath = path
	}

	return result, nil
}

func (r *Runner) newProgressBar(total int) *progressbar.ProgressBar {
	if r.opts.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.opts.Progress),
		progressbar.OptionSetDescription("книги"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func isParseError(err error) bool {
	var parseErr *parser.ParseError
	return errors.As(err, &parseErr)
}

// Paths returns every written file path of the report in ID order.
func (rep Report) Paths() []string {
	var paths []string
	for _, res := range rep.Downloaded {
		for _, p := range []string{res.ImagePath, res.TextPath} {
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}
