// Package proxy re-fetches user-supplied image URLs for display, refusing
// to touch internal network addresses.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/config"
	"github.com/clipvault/extractor/internal/netguard"
)

// Error is a structured proxy failure carrying the HTTP status the request
// handler should answer with.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes.
const (
	CodeInvalidURL     = "invalid_url"
	CodeInvalidScheme  = "invalid_scheme"
	CodePrivateAddress = "private_address"
	CodeUpstreamFailed = "upstream_failed"
)

// Result is a live upstream byte stream plus the content type to label it
// with. The caller owns Body and must close it.
type Result struct {
	Body        io.ReadCloser
	ContentType string
}

// Image validates and streams remote images.
type Image struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// NewImage constructs an Image proxy on the guarded transport.
func NewImage(cfg config.ProxyConfig, logger *zap.Logger) *Image {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Image{
		client:    netguard.NewClient(cfg.Timeout(), cfg.MaxRedirects),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// newImageWithClient exists for tests that need an unguarded client.
func newImageWithClient(client *http.Client, userAgent string, logger *zap.Logger) *Image {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Image{client: client, userAgent: userAgent, logger: logger}
}

// Fetch validates rawURL and, on acceptance, issues the GET and returns the
// live response stream. A literal private IP is rejected before any
// outbound traffic; hostnames are classified at dial time by the guarded
// transport, so the address actually connected to is the one checked.
func (p *Image) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || target.Host == "" {
		return nil, &Error{Status: http.StatusBadRequest, Code: CodeInvalidURL, Message: "invalid image URL", Err: err}
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, &Error{Status: http.StatusBadRequest, Code: CodeInvalidScheme, Message: fmt.Sprintf("unsupported scheme %q", target.Scheme)}
	}
	if err := netguard.CheckHost(target.Hostname()); err != nil {
		p.logger.Warn("image proxy rejected private address", zap.String("host", target.Hostname()))
		return nil, &Error{Status: http.StatusBadRequest, Code: CodePrivateAddress, Message: "access to private IP denied", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &Error{Status: http.StatusBadRequest, Code: CodeInvalidURL, Message: "invalid image URL", Err: err}
	}
	// A desktop UA keeps image CDNs from answering bot challenges.
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/*,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, netguard.ErrPrivateAddress) {
			p.logger.Warn("image proxy dial blocked", zap.String("url", target.String()))
			return nil, &Error{Status: http.StatusBadRequest, Code: CodePrivateAddress, Message: "access to private IP denied", Err: err}
		}
		return nil, &Error{Status: http.StatusBadGateway, Code: CodeUpstreamFailed, Message: "upstream fetch failed", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Debug("close upstream body", zap.Error(closeErr))
		}
		return nil, &Error{
			Status:  http.StatusBadGateway,
			Code:    CodeUpstreamFailed,
			Message: fmt.Sprintf("upstream answered %d", resp.StatusCode),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}
	return &Result{Body: resp.Body, ContentType: contentType}, nil
}
