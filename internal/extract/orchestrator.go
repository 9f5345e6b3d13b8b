package extract

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/events"
	"github.com/clipvault/extractor/internal/metrics"
	"github.com/clipvault/extractor/internal/queue"
)

// FastFetcher is the browser-free metadata path.
type FastFetcher interface {
	Fetch(ctx context.Context, url string) (*ScrapeResult, string)
}

// MetadataExtractor renders a page in the browser and aggregates its
// head metadata.
type MetadataExtractor interface {
	Extract(ctx context.Context, url string) ScrapeResult
}

// ReaderExtractor distills a rendered page into reader-mode content.
type ReaderExtractor interface {
	Extract(ctx context.Context, url string) ReaderContentResult
}

// Submitter admits browser-bound work through the bounded queue.
type Submitter interface {
	Submit(ctx context.Context, name string, fn queue.TaskFunc) error
}

// Orchestrator routes scrape requests between the fast path and the
// queued headless extractors, and publishes an outcome event for each
// completed request.
type Orchestrator struct {
	fast      FastFetcher
	metadata  MetadataExtractor
	reader    ReaderExtractor
	tasks     Submitter
	publisher events.Publisher
	logger    *zap.Logger
}

// NewOrchestrator wires the extraction paths together.
func NewOrchestrator(
	fast FastFetcher,
	metadata MetadataExtractor,
	reader ReaderExtractor,
	tasks Submitter,
	publisher events.Publisher,
	logger *zap.Logger,
) *Orchestrator {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Orchestrator{
		fast:      fast,
		metadata:  metadata,
		reader:    reader,
		tasks:     tasks,
		publisher: publisher,
		logger:    logger,
	}
}

// SmartScrape tries the fast path first and falls back to the queued
// headless extractor at most once. It never returns an error; failure
// is carried in the result's status so callers always get a uniform
// shape.
func (o *Orchestrator) SmartScrape(ctx context.Context, url string) ScrapeResult {
	start := time.Now()

	if result, reason := o.fast.Fetch(ctx, url); result != nil {
		metrics.ObserveScrape("fast", string(result.ScrapeStatus))
		o.publishOutcome(ctx, url, events.KindScrape, string(result.ScrapeStatus), start)
		return *result
	} else {
		o.logger.Info("fast path miss, falling back to headless",
			zap.String("url", url),
			zap.String("reason", reason),
		)
		metrics.ObserveFallback(reason)
	}

	// A timed-out task keeps running to its own deadline and still
	// writes result; after a Submit error the shared variable must
	// never be touched again, only a fresh failure value returned.
	var result ScrapeResult
	err := o.tasks.Submit(ctx, "metadata", func(taskCtx context.Context) error {
		result = o.metadata.Extract(taskCtx, url)
		return nil
	})
	if err != nil {
		o.logger.Warn("headless metadata task rejected",
			zap.String("url", url),
			zap.Error(err),
		)
		if errors.Is(err, queue.ErrTimeout) {
			metrics.ObserveScrape("headless", "timeout")
		} else {
			metrics.ObserveScrape("headless", string(StatusFailed))
		}
		o.publishOutcome(ctx, url, events.KindScrape, string(StatusFailed), start)
		return ScrapeResult{ScrapeStatus: StatusFailed}
	}

	metrics.ObserveScrape("headless", string(result.ScrapeStatus))
	o.publishOutcome(ctx, url, events.KindScrape, string(result.ScrapeStatus), start)
	return result
}

// ReaderScrape runs reader-mode extraction through the queue.
func (o *Orchestrator) ReaderScrape(ctx context.Context, url string) ReaderContentResult {
	start := time.Now()

	var result ReaderContentResult
	err := o.tasks.Submit(ctx, "reader", func(taskCtx context.Context) error {
		result = o.reader.Extract(taskCtx, url)
		return nil
	})
	if err != nil {
		o.logger.Warn("reader task rejected",
			zap.String("url", url),
			zap.Error(err),
		)
		msg := "extraction failed"
		if errors.Is(err, queue.ErrTimeout) {
			msg = "extraction timed out"
		}
		// Same discipline as SmartScrape: the abandoned task may
		// still write result, so return a fresh value instead.
		metrics.ObserveScrape("reader", string(StatusFailed))
		o.publishOutcome(ctx, url, events.KindReader, string(StatusFailed), start)
		return ReaderContentResult{Status: StatusFailed, Error: msg}
	}

	metrics.ObserveScrape("reader", string(result.Status))
	o.publishOutcome(ctx, url, events.KindReader, string(result.Status), start)
	return result
}

func (o *Orchestrator) publishOutcome(ctx context.Context, url, kind, status string, start time.Time) {
	outcome := events.Outcome{
		URL:        url,
		Kind:       kind,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		At:         time.Now().UTC(),
	}
	if err := o.publisher.Publish(ctx, outcome); err != nil {
		o.logger.Warn("outcome publish failed", zap.String("url", url), zap.Error(err))
	}
}
