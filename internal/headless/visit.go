package headless

import (
	"context"
	"time"

	"github.com/clipvault/extractor/internal/extract"
)

// Resource types as reported by the DevTools protocol.
const (
	ResourceImage      = "Image"
	ResourceFont       = "Font"
	ResourceStylesheet = "Stylesheet"
	ResourceMedia      = "Media"
)

// BlockPolicy decides which sub-requests are aborted during rendering.
// It is a plain predicate so the policy can be tested without a browser.
type BlockPolicy struct {
	// BlockImages aborts image requests. Metadata extraction does this;
	// reader mode keeps images for article rendering.
	BlockImages bool
	// BlockMedia aborts audio/video requests.
	BlockMedia bool
	// Hosts aborts requests whose hostname matches the blocklist.
	Hosts *Blocklist
}

// ShouldBlock reports whether a sub-request of the given resource type to
// the given host must be aborted.
func (p BlockPolicy) ShouldBlock(resourceType, host string) bool {
	switch resourceType {
	case ResourceFont, ResourceStylesheet:
		return true
	case ResourceImage:
		if p.BlockImages {
			return true
		}
	case ResourceMedia:
		if p.BlockMedia {
			return true
		}
	}
	return p.Hosts.Matches(host)
}

// ReadyHeuristic describes the "content is likely rendered" wait used by
// reader mode: an article-like element, a paragraph count, or enough body
// text, each probed with a short timeout and a silent fallback.
type ReadyHeuristic struct {
	Probe         time.Duration
	MinParagraphs int
	MinTextLength int
}

// Visit describes one render of a target URL.
type Visit struct {
	URL    string
	Policy BlockPolicy
	Ready  *ReadyHeuristic
	// NavTimeout bounds navigation up to DOM-ready. It is deliberately
	// shorter than the queue's task deadline so a stalled page fails
	// fast instead of holding a queue slot. Zero means the default.
	NavTimeout  time.Duration
	CaptureHTML bool
}

// PageState is what a completed visit hands back across the automation
// boundary: document response status, the final post-redirect URL, the
// fixed head-metadata schema, and (when requested) the rendered HTML.
type PageState struct {
	StatusCode int
	FinalURL   string
	Meta       extract.PageMeta
	HTML       string
}

// Runner renders pages. The production implementation drives chromedp
// against the shared browser; tests substitute a fake.
type Runner interface {
	Visit(ctx context.Context, v Visit) (*PageState, error)
}
