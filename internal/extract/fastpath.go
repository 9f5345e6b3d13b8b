package extract

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/config"
)

// Fallback reasons reported when the fast path cannot produce an
// acceptable result.
const (
	ReasonFetchError       = "fetch_error"
	ReasonCanceled         = "canceled"
	ReasonMissingTitle     = "missing_title"
	ReasonMissingImageDesc = "missing_image_and_description"
)

// Fastpath fetches page metadata with a plain HTTP GET, without a
// browser. It is cheap and fast but easily defeated by client-side
// rendering, so callers treat a nil result as a signal to fall back
// to the headless extractor.
type Fastpath struct {
	cfg           config.FastpathConfig
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewFastpath builds a Fastpath around a shared base collector.
func NewFastpath(cfg config.FastpathConfig, logger *zap.Logger) *Fastpath {
	c := colly.NewCollector(
		colly.Async(false),
		colly.MaxBodySize(5*1024*1024),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(newFastpathTransport())
	return &Fastpath{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch GETs target and aggregates head metadata. On success it
// returns the result and an empty reason. On any failure, including a
// fetch that succeeded but produced metadata below the acceptance
// bar, it returns nil and a reason naming what went wrong.
func (f *Fastpath) Fetch(ctx context.Context, target string) (*ScrapeResult, string) {
	var (
		page     PageMeta
		finalURL string
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnHTML("head title", func(e *colly.HTMLElement) {
		if page.Title == "" {
			page.Title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnHTML("head meta", func(e *colly.HTMLElement) {
		tag := MetaTag{
			Name:     e.Attr("name"),
			Property: e.Attr("property"),
			Content:  e.Attr("content"),
		}
		if tag.Content == "" || (tag.Name == "" && tag.Property == "") {
			return
		}
		page.MetaTags = append(page.MetaTags, tag)
	})
	collector.OnHTML(`head link[rel]`, func(e *colly.HTMLElement) {
		if page.FaviconHref != "" {
			return
		}
		rel := strings.ToLower(e.Attr("rel"))
		if strings.Contains(rel, "icon") && e.Attr("href") != "" {
			page.FaviconHref = e.Attr("href")
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := f.runCollector(ctx, collector, target); err != nil {
		f.logger.Debug("fast path fetch failed", zap.String("url", target), zap.Error(err))
		if ctx.Err() != nil {
			return nil, ReasonCanceled
		}
		return nil, ReasonFetchError
	}
	if fetchErr != nil {
		f.logger.Debug("fast path response failed", zap.String("url", target), zap.Error(fetchErr))
		return nil, ReasonFetchError
	}
	if finalURL == "" {
		finalURL = target
	}

	result := AggregateMeta(page, finalURL)
	if reason := acceptanceReason(result); reason != "" {
		return nil, reason
	}
	result.ScrapeStatus = StatusSuccess
	return &result, ""
}

// acceptanceReason returns "" when the result carries enough metadata
// to stand on its own: a title plus at least one of image or
// description. A partial hit counts as a miss.
func acceptanceReason(r ScrapeResult) string {
	if r.Title == "" {
		return ReasonMissingTitle
	}
	if r.Image == "" && r.Description == "" {
		return ReasonMissingImageDesc
	}
	return ""
}

func (f *Fastpath) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fast path canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("fast path visit failed: %w", err)
		}
		return nil
	}
}

func newFastpathTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        20,
		IdleConnTimeout:     60 * time.Second,
	}
}
