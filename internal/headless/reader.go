package headless

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/archive"
	"github.com/clipvault/extractor/internal/config"
	"github.com/clipvault/extractor/internal/extract"
	"github.com/clipvault/extractor/internal/hash/sha256"
	"github.com/clipvault/extractor/internal/readerproc"
)

// ReaderExtractor renders a page and distills it into readable article
// content. Unlike the metadata path it keeps images, waits for content to
// actually appear, and post-processes the distilled fragment with paragraph
// identifiers and download-link annotations.
type ReaderExtractor struct {
	runner    Runner
	cfg       config.ReaderConfig
	blocks    *Blocklist
	snapshots archive.Store
	logger    *zap.Logger
}

// NewReaderExtractor creates a ReaderExtractor. Rendered HTML is
// written to snapshots when distillation fails, so missed extractions
// can be diagnosed offline; pass nil to disable snapshotting.
func NewReaderExtractor(runner Runner, cfg config.ReaderConfig, snapshots archive.Store, logger *zap.Logger) *ReaderExtractor {
	if snapshots == nil {
		snapshots = archive.NoopStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReaderExtractor{
		runner:    runner,
		cfg:       cfg,
		blocks:    DefaultBlocklist(),
		snapshots: snapshots,
		logger:    logger,
	}
}

// Extract renders url and returns the distilled article. It never returns
// an error; outcomes are encoded in Status. Run inside a queue task.
func (e *ReaderExtractor) Extract(ctx context.Context, target string) extract.ReaderContentResult {
	state, err := e.runner.Visit(ctx, Visit{
		URL: target,
		Policy: BlockPolicy{
			BlockImages: false,
			BlockMedia:  true,
			Hosts:       e.blocks,
		},
		Ready: &ReadyHeuristic{
			Probe:         e.cfg.ReadyProbe(),
			MinParagraphs: e.cfg.MinParagraphs,
			MinTextLength: e.cfg.MinBodyTextLength,
		},
		NavTimeout:  e.cfg.NavTimeout(),
		CaptureHTML: true,
	})
	if err != nil {
		e.logger.Warn("reader render failed", zap.String("url", target), zap.Error(err))
		return readerFailure(fmt.Sprintf("render failed: %v", err))
	}
	if state.StatusCode == http.StatusForbidden {
		e.logger.Info("reader blocked by site", zap.String("url", target))
		return extract.ReaderContentResult{Status: extract.StatusBlocked}
	}

	result := e.distill(state)
	if result.Status == extract.StatusFailed {
		e.snapshot(ctx, state)
	}
	return result
}

// snapshot archives the rendered HTML of a page that defeated
// distillation. Failures are logged and swallowed; archiving must
// never change the extraction outcome.
func (e *ReaderExtractor) snapshot(ctx context.Context, state *PageState) {
	if state.HTML == "" {
		return
	}
	name := fmt.Sprintf("reader-misses/%s.html", sha256.Short([]byte(state.FinalURL), 16))
	if err := e.snapshots.Save(ctx, name, []byte(state.HTML)); err != nil {
		e.logger.Warn("snapshot save failed",
			zap.String("url", state.FinalURL),
			zap.String("object", name),
			zap.Error(err),
		)
	}
}

// distill runs readability over the rendered HTML and post-processes the
// resulting fragment. Split out so tests can feed canned page states
// through a fake runner.
func (e *ReaderExtractor) distill(state *PageState) extract.ReaderContentResult {
	pageURL, err := url.Parse(state.FinalURL)
	if err != nil {
		return readerFailure(fmt.Sprintf("unparseable final URL %q: %v", state.FinalURL, err))
	}

	article, err := readability.FromReader(strings.NewReader(state.HTML), pageURL)
	if err != nil {
		return readerFailure(fmt.Sprintf("readability parse: %v", err))
	}
	if strings.TrimSpace(article.Title) == "" {
		return readerFailure("no extractable content")
	}

	// The download-link scan deliberately runs over the original page, not
	// the readability subset: file-sharing pages bury their links outside
	// the article body.
	content, err := readerproc.Process(article.Content, state.HTML, state.FinalURL)
	if err != nil {
		return readerFailure(fmt.Sprintf("post-process content: %v", err))
	}

	return extract.ReaderContentResult{
		Title:       article.Title,
		Byline:      article.Byline,
		Content:     content,
		TextContent: article.TextContent,
		SiteName:    article.SiteName,
		Status:      extract.StatusSuccess,
	}
}

func readerFailure(msg string) extract.ReaderContentResult {
	return extract.ReaderContentResult{
		Status: extract.StatusFailed,
		Error:  msg,
	}
}
