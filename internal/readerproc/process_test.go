package readerproc

import (
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const finalURL = "https://news.example.com/2026/post?page=1"

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestProcessAssignsStableUniqueParagraphIDs(t *testing.T) {
	t.Parallel()

	article := `<div><p>First paragraph.</p><p>Second paragraph.</p><p>First paragraph.</p></div>`

	out1, err := Process(article, "", finalURL)
	require.NoError(t, err)
	out2, err := Process(article, "", finalURL)
	require.NoError(t, err)

	// Byte-identical input yields byte-identical output.
	require.Equal(t, out1, out2)

	doc := parse(t, out1)
	ids := map[string]int{}
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		require.True(t, ok, "every paragraph gets an id")
		require.True(t, strings.HasPrefix(id, "cvp-"), id)
		require.Equal(t, "true", s.AttrOr("data-cv-paragraph", ""))
		ids[id]++
	})
	require.Len(t, ids, 3, "ids must be unique within one result")
	for id, n := range ids {
		require.Equal(t, 1, n, "duplicate id %s", id)
	}
}

func TestProcessNormalizesWhitespaceForIDs(t *testing.T) {
	t.Parallel()

	a := `<p>spaced   out    text</p>`
	b := `<p>spaced out text</p>`

	outA, err := Process(a, "", finalURL)
	require.NoError(t, err)
	outB, err := Process(b, "", finalURL)
	require.NoError(t, err)

	idOf := func(out string) string {
		return parse(t, out).Find("p").AttrOr("id", "")
	}
	require.Equal(t, idOf(outA), idOf(outB))
}

func TestProcessRewritesRelativeLinks(t *testing.T) {
	t.Parallel()

	article := `<p><a href="/about">about</a> <a href="other.html">rel</a> ` +
		`<a href="https://abs.example.org/x">abs</a> <a href="#frag">frag</a> ` +
		`<img src="/img/pic.png"></p>`

	out, err := Process(article, "", finalURL)
	require.NoError(t, err)
	doc := parse(t, out)

	hrefs := doc.Find("a").Map(func(_ int, s *goquery.Selection) string {
		return s.AttrOr("href", "")
	})
	require.Equal(t, []string{
		"https://news.example.com/about",
		"https://news.example.com/2026/other.html",
		"https://abs.example.org/x",
		"#frag",
	}, hrefs)
	require.Equal(t, "https://news.example.com/img/pic.png", doc.Find("img").AttrOr("src", ""))
}

func TestProcessTagsDownloadLinks(t *testing.T) {
	t.Parallel()

	article := `<p><a href="https://mega.nz/file/abc">mirror</a>` +
		`<a href="https://example.com/release.zip">zip</a>` +
		`<a href="https://example.com/page">plain</a></p>`

	out, err := Process(article, "", finalURL)
	require.NoError(t, err)
	doc := parse(t, out)

	require.Equal(t, "true", doc.Find(`a[href="https://mega.nz/file/abc"]`).AttrOr("data-cv-download", ""))
	require.Equal(t, "true", doc.Find(`a[href="https://example.com/release.zip"]`).AttrOr("data-cv-download", ""))
	require.Equal(t, "", doc.Find(`a[href="https://example.com/page"]`).AttrOr("data-cv-download", ""))
}

func TestProcessAppendsDownloadsFromOriginalPage(t *testing.T) {
	t.Parallel()

	article := `<p>Review of the release.</p>`
	page := `<html><body>
		<div class="sidebar">
			<a href="https://mediafire.com/file/xyz">Mirror 1</a>
			<a href="/local/build.rar">Mirror 2</a>
			<span>password: hunter2</span>
		</div>
	</body></html>`

	out, err := Process(article, page, finalURL)
	require.NoError(t, err)
	doc := parse(t, out)

	section := doc.Find(`section[data-cv-downloads="true"]`)
	require.Equal(t, 1, section.Length())
	require.Equal(t, "Download Links", section.Find("h2").Text())

	links := section.Find("a").Map(func(_ int, s *goquery.Selection) string {
		return s.AttrOr("href", "")
	})
	require.Contains(t, links, "https://mediafire.com/file/xyz")
	require.Contains(t, links, "https://news.example.com/local/build.rar")
	require.Contains(t, section.Text(), "Password: hunter2")
}

func TestProcessDedupesArticleDownloads(t *testing.T) {
	t.Parallel()

	article := `<p><a href="https://mega.nz/file/abc">mirror</a></p>`
	page := `<body><a href="https://mega.nz/file/abc">dup</a><a href="https://gofile.io/d/xyz">new</a></body>`

	out, err := Process(article, page, finalURL)
	require.NoError(t, err)
	doc := parse(t, out)

	section := doc.Find(`section[data-cv-downloads="true"]`)
	links := section.Find("a").Map(func(_ int, s *goquery.Selection) string {
		return s.AttrOr("href", "")
	})
	require.Equal(t, []string{"https://gofile.io/d/xyz"}, links)
}

func TestProcessNoSectionWithoutFindings(t *testing.T) {
	t.Parallel()

	out, err := Process(`<p>Nothing to download here.</p>`, `<body><p>still nothing</p></body>`, finalURL)
	require.NoError(t, err)
	require.NotContains(t, out, "data-cv-downloads")
	require.NotContains(t, out, "Download Links")
}

func TestProcessRejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	_, err := Process(`<p>x</p>`, "", "://not-a-url")
	require.Error(t, err)
}

func TestIsDownloadLink(t *testing.T) {
	t.Parallel()

	yes := []string{
		"https://mega.nz/file/abc",
		"https://www.mediafire.com/file/q",
		"https://drive.google.com/file/d/1",
		"https://example.com/game.iso",
		"https://example.com/dir/song.FLAC",
		"https://pixeldrain.com/u/x",
	}
	for _, raw := range yes {
		require.True(t, IsDownloadLink(raw), raw)
	}

	no := []string{
		"https://example.com/article",
		"https://example.com/zip-codes",
		"/relative/file.zip",
		"mailto:a@b.c",
		"",
	}
	for _, raw := range no {
		require.False(t, IsDownloadLink(raw), raw)
	}
}

func TestPasswordPattern(t *testing.T) {
	t.Parallel()

	m := passwordPattern.FindStringSubmatch("Archive Password: s3cret!")
	require.NotNil(t, m)
	require.Equal(t, "s3cret!", m[1])

	m = passwordPattern.FindStringSubmatch("password=abc123")
	require.NotNil(t, m)
	require.Equal(t, "abc123", m[1])

	require.Nil(t, passwordPattern.FindStringSubmatch("no credentials here"))
	require.True(t, regexp.MustCompile(`hunter2`).MatchString("password: hunter2"))
}
