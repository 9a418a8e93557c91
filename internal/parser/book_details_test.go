package parser

import (
	"errors"
	"strings"
	"testing"
)

const bookPage = `<html><body>
<table><tr>
<td class="ow_px_td">
  <h1>  Title ::  Author  </h1>
  <div class="bookimage"><a href="/b5/"><img src="/shots/5%20cover.jpg" alt="cover"></a></div>
  <span class="d_book"><b>Жанр книги:</b> <a href="/l55/">Научная фантастика</a>, <a href="/l61/">Прочие приключения</a></span>
  <div class="texts"><b>Reader</b><br><span class="black">Great book</span></div>
  <div class="texts"><b>Nobody</b></div>
  <div class="texts"><b>Other</b><br><span class="black">Too long</span></div>
</td>
</tr></table>
</body></html>`

func TestParseBookPage(t *testing.T) {
	adapter, err := NewTululuAdapter("https://tululu.org")
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}

	book, err := adapter.ParseBookPage(5, strings.NewReader(bookPage))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if book.ID != 5 || book.Title != "Title" || book.Author != "Author" {
		t.Fatalf("unexpected header: %+v", book)
	}
	if book.CoverURL != "https://tululu.org/shots/5%20cover.jpg" {
		t.Fatalf("unexpected cover url: %q", book.CoverURL)
	}
	if book.CoverFilename != "5 cover.jpg" {
		t.Fatalf("unexpected cover filename: %q", book.CoverFilename)
	}
	if strings.Join(book.Genres, "|") != "Научная фантастика|Прочие приключения" {
		t.Fatalf("unexpected genres: %q", book.Genres)
	}
	if strings.Join(book.Comments, "|") != "Great book|Too long" {
		t.Fatalf("unexpected comments: %q", book.Comments)
	}
	if book.TextFilename() != "5.Title.txt" {
		t.Fatalf("unexpected text filename: %q", book.TextFilename())
	}
}

func TestParseBookPageWithoutGenresAndComments(t *testing.T) {
	page := inTitleCell(`<h1>A :: B</h1><div class="bookimage"><img src="/images/nopic.gif"></div>`)

	adapter, _ := NewTululuAdapter("")
	book, err := adapter.ParseBookPage(1, strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if book.Genres == nil || len(book.Genres) != 0 {
		t.Fatalf("expected empty genres, got %#v", book.Genres)
	}
	if book.Comments == nil || len(book.Comments) != 0 {
		t.Fatalf("expected empty comments, got %#v", book.Comments)
	}
	if book.CoverURL != "https://tululu.org/images/nopic.gif" || book.CoverFilename != "nopic.gif" {
		t.Fatalf("unexpected cover: %q %q", book.CoverURL, book.CoverFilename)
	}
}

func TestParseBookPageMissingRequiredMarkup(t *testing.T) {
	cases := map[string]string{
		"no header":    `<div class="bookimage"><img src="/a.jpg"></div>`,
		"no heading":   inTitleCell(`<div class="bookimage"><img src="/a.jpg"></div>`),
		"no delimiter": inTitleCell(`<h1>Just a title</h1><div class="bookimage"><img src="/a.jpg"></div>`),
		"no cover":     inTitleCell(`<h1>A :: B</h1>`),
		"empty src":    inTitleCell(`<h1>A :: B</h1><div class="bookimage"><img src=""></div>`),
	}

	adapter, _ := NewTululuAdapter("https://tululu.org/")
	for name, page := range cases {
		_, err := adapter.ParseBookPage(1, strings.NewReader(page))
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("%s: expected ParseError, got %v", name, err)
		}
	}
}

func TestSplitTitleAuthor(t *testing.T) {
	title, author, err := SplitTitleAuthor("  Title ::  Author  ", "::")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if title != "Title" || author != "Author" {
		t.Fatalf("got %q / %q", title, author)
	}
}

func TestFilenameFromURL(t *testing.T) {
	name, err := FilenameFromURL("https://tululu.org/shots/%D0%BA%D0%BD%D0%B8%D0%B3%D0%B0.jpg?x=1")
	if err != nil {
		t.Fatalf("filename: %v", err)
	}
	if name != "книга.jpg" {
		t.Fatalf("unexpected filename: %q", name)
	}

	if _, err := FilenameFromURL("https://tululu.org/"); err == nil {
		t.Fatal("expected error for url without filename")
	}
}

func TestAdapterURLs(t *testing.T) {
	adapter, err := NewTululuAdapter("https://tululu.org")
	if err != nil {
		t.Fatalf("adapter: %v", err)
	}

	if got := adapter.BookPageURL(7); got != "https://tululu.org/b7/" {
		t.Fatalf("unexpected page url: %q", got)
	}

	textURL, params := adapter.TextURL(7)
	if textURL != "https://tululu.org/txt.php" || params.Get("id") != "7" {
		t.Fatalf("unexpected text url: %q %v", textURL, params)
	}

	if _, err := NewTululuAdapter("tululu.org"); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func inTitleCell(inner string) string {
	return `<html><body><table><tr><td class="ow_px_td">` + inner + `</td></tr></table></body></html>`
}
