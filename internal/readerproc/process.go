// Package readerproc post-processes readability output: stable paragraph
// identifiers for annotation targeting, absolute link rewriting, and
// download-link discovery over the original page.
package readerproc

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/clipvault/extractor/internal/hash/sha256"
)

const (
	// paragraphAttr marks every paragraph the processor visited.
	paragraphAttr = "data-cv-paragraph"
	// downloadAttr marks anchors pointing at downloadable files.
	downloadAttr = "data-cv-download"
	// downloadsSectionAttr marks the synthesized Download Links section.
	downloadsSectionAttr = "data-cv-downloads"

	paragraphIDPrefix = "cvp-"
	paragraphIDLength = 12
)

var passwordPattern = regexp.MustCompile(`(?i)\bpassword\s*[:=]\s*(\S+)`)

// fileHostDomains are hosts whose links are downloads regardless of path.
var fileHostDomains = []string{
	"mega.nz",
	"mediafire.com",
	"drive.google.com",
	"dropbox.com",
	"1fichier.com",
	"pixeldrain.com",
	"gofile.io",
	"zippyshare.com",
	"rapidgator.net",
	"uploaded.net",
	"krakenfiles.com",
	"anonfiles.com",
	"workupload.com",
	"send.cm",
}

// fileExtensions mark direct file links by path suffix.
var fileExtensions = []string{
	".zip", ".rar", ".7z", ".tar", ".gz", ".iso",
	".exe", ".dmg", ".apk", ".msi",
	".pdf", ".epub", ".mobi",
	".mp3", ".flac", ".mp4", ".mkv", ".avi",
	".torrent",
}

// Process rewrites the readability fragment and appends download links
// found on the original page. articleHTML is the distilled fragment,
// pageHTML the full rendered document, finalURL the page's post-redirect
// address used as the base for relative references.
func Process(articleHTML, pageHTML, finalURL string) (string, error) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", finalURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(articleHTML))
	if err != nil {
		return "", fmt.Errorf("parse article fragment: %w", err)
	}

	assignParagraphIDs(doc)
	rewriteLinks(doc, base)
	articleDownloads := tagDownloadLinks(doc)

	extra, password := scanOriginalPage(pageHTML, base, articleDownloads)
	appendDownloadSection(doc, extra, password)

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("serialize content: %w", err)
	}
	return out, nil
}

// assignParagraphIDs gives every paragraph an identifier derived from its
// own text, so the same input always yields the same IDs and annotations
// survive re-extraction. Duplicate texts get a deterministic ordinal
// suffix to keep IDs unique within the document.
func assignParagraphIDs(doc *goquery.Document) {
	seen := map[string]int{}
	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		normalized := strings.Join(strings.Fields(s.Text()), " ")
		key := sha256.Short([]byte(normalized), paragraphIDLength)
		seen[key]++
		id := paragraphIDPrefix + key
		if n := seen[key]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		s.SetAttr("id", id)
		s.SetAttr(paragraphAttr, "true")
	})
}

// rewriteLinks makes every href and src absolute against the final page URL.
func rewriteLinks(doc *goquery.Document, base *url.URL) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			s.SetAttr("href", absolutize(base, href))
		}
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			s.SetAttr("src", absolutize(base, src))
		}
	})
}

// tagDownloadLinks marks download anchors in the article and returns the
// set of their targets for deduplication against the page-wide scan.
func tagDownloadLinks(doc *goquery.Document) map[string]struct{} {
	found := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if IsDownloadLink(href) {
			s.SetAttr(downloadAttr, "true")
			found[href] = struct{}{}
		}
	})
	return found
}

// scanOriginalPage walks the full, unfiltered page for download links the
// readability subset dropped, plus an inline "password: X" hint common on
// file-sharing pages.
func scanOriginalPage(pageHTML string, base *url.URL, known map[string]struct{}) ([]string, string) {
	if strings.TrimSpace(pageHTML) == "" {
		return nil, ""
	}
	pageDoc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, ""
	}

	var extra []string
	dedup := map[string]struct{}{}
	for k := range known {
		dedup[k] = struct{}{}
	}
	pageDoc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := absolutize(base, href)
		if !IsDownloadLink(abs) {
			return
		}
		if _, ok := dedup[abs]; ok {
			return
		}
		dedup[abs] = struct{}{}
		extra = append(extra, abs)
	})

	password := ""
	if m := passwordPattern.FindStringSubmatch(pageDoc.Text()); m != nil {
		password = m[1]
	}
	return extra, password
}

// appendDownloadSection synthesizes the Download Links appendix when the
// page-wide scan found anything the article body didn't carry.
func appendDownloadSection(doc *goquery.Document, links []string, password string) {
	if len(links) == 0 && password == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<section %s="true"><h2>Download Links</h2>`, downloadsSectionAttr)
	if len(links) > 0 {
		b.WriteString("<ul>")
		for _, link := range links {
			fmt.Fprintf(&b, `<li><a href=%q %s="true" rel="nofollow">%s</a></li>`, link, downloadAttr, htmlEscape(link))
		}
		b.WriteString("</ul>")
	}
	if password != "" {
		fmt.Fprintf(&b, `<p>Password: %s</p>`, htmlEscape(password))
	}
	b.WriteString("</section>")
	doc.Find("body").AppendHtml(b.String())
}

// IsDownloadLink reports whether raw points at a file host or a direct
// file by extension.
func IsDownloadLink(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range fileHostDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	path := strings.ToLower(u.Path)
	for _, ext := range fileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func absolutize(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(ref, "javascript:") || strings.HasPrefix(ref, "data:") {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
