package headless

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/extract"
)

// MetadataExtractor is the advanced metadata path: a full headless render
// for pages whose preview tags only exist after JavaScript runs.
type MetadataExtractor struct {
	runner Runner
	blocks *Blocklist
	logger *zap.Logger
}

// NewMetadataExtractor creates a MetadataExtractor on the given runner.
func NewMetadataExtractor(runner Runner, logger *zap.Logger) *MetadataExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataExtractor{
		runner: runner,
		blocks: DefaultBlocklist(),
		logger: logger,
	}
}

// Extract renders url and aggregates its head metadata. It never returns an
// error; outcomes are encoded in ScrapeStatus. Run this inside a queue task
// with a fail-fast deadline on ctx.
func (e *MetadataExtractor) Extract(ctx context.Context, url string) extract.ScrapeResult {
	state, err := e.runner.Visit(ctx, Visit{
		URL: url,
		Policy: BlockPolicy{
			// Preview extraction reads tags, not pixels.
			BlockImages: true,
			BlockMedia:  true,
			Hosts:       e.blocks,
		},
	})
	if err != nil {
		e.logger.Warn("advanced metadata render failed", zap.String("url", url), zap.Error(err))
		return extract.ScrapeResult{ScrapeStatus: extract.StatusFailed}
	}
	if state.StatusCode == http.StatusForbidden {
		e.logger.Info("advanced metadata blocked by site", zap.String("url", url))
		return extract.ScrapeResult{ScrapeStatus: extract.StatusBlocked}
	}

	result := extract.AggregateMeta(state.Meta, state.FinalURL)
	e.logger.Debug("advanced metadata extracted",
		zap.String("url", url),
		zap.String("status", string(result.ScrapeStatus)),
	)
	return result
}
