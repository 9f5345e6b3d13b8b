package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/browser"
	"github.com/clipvault/extractor/internal/extract"
)

// headMetaJS lifts the fixed head-metadata schema out of the page. Only the
// head is read; the full document never crosses the boundary on the
// metadata path.
const headMetaJS = `(() => {
	const metaTags = Array.from(document.head.querySelectorAll('meta')).map(m => ({
		name: m.getAttribute('name') || '',
		property: m.getAttribute('property') || '',
		content: m.getAttribute('content') || ''
	}));
	const icon = document.head.querySelector('link[rel~="icon" i], link[rel="apple-touch-icon" i]');
	return {
		title: document.title || '',
		metaTags: metaTags,
		faviconHref: icon ? (icon.getAttribute('href') || '') : ''
	};
})()`

// stealthJS masks the most common automation tell before any page script
// runs.
const stealthJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// defaultNavTimeout bounds navigation when the visit does not set its own.
const defaultNavTimeout = 30 * time.Second

// ChromeRunner renders pages with chromedp on the shared browser. Each
// visit opens an isolated browsing context and closes it on the way out,
// whatever happened in between.
type ChromeRunner struct {
	browser browser.Allocator
	logger  *zap.Logger
}

// NewChromeRunner creates a ChromeRunner.
func NewChromeRunner(alloc browser.Allocator, logger *zap.Logger) *ChromeRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeRunner{browser: alloc, logger: logger}
}

// Visit implements Runner.
func (r *ChromeRunner) Visit(ctx context.Context, v Visit) (*PageState, error) {
	lease, err := r.browser.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}
	defer lease.Release()

	taskCtx, closeTab := chromedp.NewContext(lease.Context())
	// The per-task browsing context is this visit's only hold on the shared
	// browser; it must be closed on every path, including timeouts.
	defer closeTab()

	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithDeadline(taskCtx, deadline)
		defer cancel()
	}

	meta := newResponseMeta()
	installListeners(taskCtx, v.Policy, meta, r.logger)

	var (
		finalURL string
		pageMeta extract.PageMeta
		html     string
	)

	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable network domain: %w", err)
			}
			if err := fetch.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable fetch domain: %w", err)
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx); err != nil {
				return fmt.Errorf("install stealth script: %w", err)
			}
			return nil
		}),
		chromedp.Navigate(v.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	navTimeout := v.NavTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavTimeout
	}
	navCtx, cancelNav := context.WithTimeout(taskCtx, navTimeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx, actions...); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", v.URL, err)
	}

	if v.Ready != nil {
		r.waitForContent(taskCtx, *v.Ready)
	}

	extracted := []chromedp.Action{
		chromedp.Location(&finalURL),
		chromedp.Evaluate(headMetaJS, &pageMeta),
	}
	if v.CaptureHTML {
		extracted = append(extracted, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	}
	if err := chromedp.Run(taskCtx, extracted...); err != nil {
		return nil, fmt.Errorf("extract page state: %w", err)
	}

	status, responseURL := meta.snapshotWithFallbacks(v.URL, finalURL)
	return &PageState{
		StatusCode: status,
		FinalURL:   responseURL,
		Meta:       pageMeta,
		HTML:       html,
	}, nil
}

// waitForContent runs the readiness probes in order, stopping at the first
// hit. Every probe failure is a silent fallback; worst case we extract from
// whatever has rendered by now.
func (r *ChromeRunner) waitForContent(ctx context.Context, h ReadyHeuristic) {
	probe := h.Probe
	if probe <= 0 {
		probe = 2 * time.Second
	}
	checks := []string{
		`document.querySelector('article, [role="article"], main') !== null`,
		fmt.Sprintf(`document.querySelectorAll('p').length >= %d`, h.MinParagraphs),
		fmt.Sprintf(`document.body && document.body.innerText.length >= %d`, h.MinTextLength),
	}
	for _, expr := range checks {
		err := chromedp.Run(ctx, chromedp.Poll(expr, nil, chromedp.WithPollingTimeout(probe)))
		if err == nil {
			return
		}
		if !errors.Is(err, chromedp.ErrPollingTimeout) {
			return
		}
	}
}

// installListeners wires request interception and document-response capture
// onto the task context.
func installListeners(taskCtx context.Context, policy BlockPolicy, meta *responseMeta, logger *zap.Logger) {
	chromedp.ListenTarget(taskCtx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			// The target executor is only resolvable once events flow.
			c := chromedp.FromContext(taskCtx)
			go resolvePausedRequest(cdp.WithExecutor(taskCtx, c.Target), policy, ev, logger)
		case *network.EventResponseReceived:
			meta.capture(ev)
		}
	})
}

// resolvePausedRequest aborts or continues one intercepted sub-request.
// Document requests always pass; blocking the page itself would turn every
// visit into a navigation error.
func resolvePausedRequest(ectx context.Context, policy BlockPolicy, ev *fetch.EventRequestPaused, logger *zap.Logger) {
	if ev.ResourceType != network.ResourceTypeDocument && shouldBlockRequest(policy, ev) {
		if err := fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ectx); err != nil {
			logger.Debug("abort sub-request", zap.Error(err))
		}
		return
	}
	if err := fetch.ContinueRequest(ev.RequestID).Do(ectx); err != nil {
		logger.Debug("continue sub-request", zap.Error(err))
	}
}

func shouldBlockRequest(policy BlockPolicy, ev *fetch.EventRequestPaused) bool {
	host := ""
	if u, err := url.Parse(ev.Request.URL); err == nil {
		host = u.Hostname()
	}
	return policy.ShouldBlock(string(ev.ResourceType), host)
}

// responseMeta records the main document response seen during navigation.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mu.Unlock()
}

// snapshotWithFallbacks returns the captured status and URL, falling back
// to the browser-reported location and then the request URL. A missing
// status reads as 200: the page rendered, nothing said otherwise.
func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, responseURL := m.status, m.url
	m.mu.RUnlock()

	switch {
	case responseURL != "":
	case finalURL != "":
		responseURL = finalURL
	default:
		responseURL = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, responseURL
}
