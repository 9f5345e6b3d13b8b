package headless

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivemem "github.com/clipvault/extractor/internal/archive/memory"
	"github.com/clipvault/extractor/internal/config"
	"github.com/clipvault/extractor/internal/extract"
	"github.com/clipvault/extractor/internal/hash/sha256"
)

func testReaderConfig() config.ReaderConfig {
	return config.ReaderConfig{
		NavTimeoutMs:      30000,
		ReadyProbeMs:      2000,
		MinParagraphs:     5,
		MinBodyTextLength: 600,
	}
}

// articleHTML is a page with enough real prose for the distiller to
// recognize an article.
const articleHTML = `<!DOCTYPE html>
<html><head><title>Weather Models Explained</title></head><body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Weather Models Explained</h1>
<p>Numerical weather prediction works by dividing the atmosphere into a
three dimensional grid and stepping the governing equations of fluid
dynamics and thermodynamics forward in time from an observed initial
state. The quality of that initial state dominates forecast skill for
the first several days.</p>
<p>Global models trade resolution for coverage. A grid cell spanning ten
kilometers cannot resolve an individual thunderstorm, so convection is
parameterized, which is a polite way of saying it is approximated with
empirical formulas tuned against decades of observations.</p>
<p>Regional models nest inside the global ones and inherit their
boundary conditions. Errors at the boundary propagate inward at roughly
the speed of the prevailing flow, which limits how long a regional run
stays trustworthy regardless of its resolution.</p>
<p>Ensemble systems attack uncertainty directly. Instead of one forecast
they run dozens, each from a slightly perturbed initial state, and the
spread between members is itself a forecast of forecast error.</p>
<p>Verification closes the loop. Every forecast is eventually scored
against what actually happened, and those scores drive both model
development priorities and the statistical post-processing applied to
raw model output before anyone sees it.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestReaderExtractSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{state: &PageState{
		StatusCode: http.StatusOK,
		FinalURL:   "https://example.com/weather-models",
		HTML:       articleHTML,
	}}

	e := NewReaderExtractor(runner, testReaderConfig(), nil, zap.NewNop())
	result := e.Extract(context.Background(), "https://example.com/weather-models")

	require.Equal(t, extract.StatusSuccess, result.Status)
	require.Equal(t, "Weather Models Explained", result.Title)
	require.Contains(t, result.Content, "data-cv-paragraph")
	require.Contains(t, result.TextContent, "Numerical weather prediction")
	require.Empty(t, result.Error)
}

func TestReaderExtractRequestsFullRender(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{state: &PageState{
		StatusCode: http.StatusOK,
		FinalURL:   "https://example.com/weather-models",
		HTML:       articleHTML,
	}}

	cfg := testReaderConfig()
	e := NewReaderExtractor(runner, cfg, nil, zap.NewNop())
	e.Extract(context.Background(), "https://example.com/weather-models")

	require.Len(t, runner.visits, 1)
	v := runner.visits[0]
	require.False(t, v.Policy.BlockImages, "reader mode keeps images")
	require.True(t, v.Policy.BlockMedia)
	require.True(t, v.CaptureHTML)
	require.NotNil(t, v.Ready)
	require.Equal(t, cfg.MinParagraphs, v.Ready.MinParagraphs)
	require.Equal(t, cfg.MinBodyTextLength, v.Ready.MinTextLength)
	require.Equal(t, cfg.NavTimeout(), v.NavTimeout, "navigation must fail fast on the configured budget")
}

func TestReaderExtractForbiddenMapsToBlocked(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{state: &PageState{
		StatusCode: http.StatusForbidden,
		FinalURL:   "https://example.com",
		HTML:       "<html><body>Access denied</body></html>",
	}}

	e := NewReaderExtractor(runner, testReaderConfig(), nil, zap.NewNop())
	result := e.Extract(context.Background(), "https://example.com")

	require.Equal(t, extract.StatusBlocked, result.Status)
}

func TestReaderExtractRenderErrorMapsToFailed(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("navigation timeout")}

	e := NewReaderExtractor(runner, testReaderConfig(), nil, zap.NewNop())
	result := e.Extract(context.Background(), "https://example.com")

	require.Equal(t, extract.StatusFailed, result.Status)
	require.Contains(t, result.Error, "render failed")
}

func TestReaderExtractEmptyPageMapsToFailed(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{state: &PageState{
		StatusCode: http.StatusOK,
		FinalURL:   "https://example.com/empty",
		HTML:       "<html><head></head><body></body></html>",
	}}

	e := NewReaderExtractor(runner, testReaderConfig(), nil, zap.NewNop())
	result := e.Extract(context.Background(), "https://example.com/empty")

	require.Equal(t, extract.StatusFailed, result.Status)
	require.Contains(t, result.Error, "no extractable content")
}

func TestReaderExtractArchivesSnapshotOnDistillFailure(t *testing.T) {
	t.Parallel()

	const finalURL = "https://example.com/empty"
	pageHTML := "<html><head></head><body></body></html>"
	runner := &fakeRunner{state: &PageState{
		StatusCode: http.StatusOK,
		FinalURL:   finalURL,
		HTML:       pageHTML,
	}}
	snapshots := archivemem.New()

	e := NewReaderExtractor(runner, testReaderConfig(), snapshots, zap.NewNop())
	result := e.Extract(context.Background(), finalURL)

	require.Equal(t, extract.StatusFailed, result.Status)
	name := "reader-misses/" + sha256.Short([]byte(finalURL), 16) + ".html"
	saved, ok := snapshots.Get(name)
	require.True(t, ok, "rendered HTML should be archived for diagnosis")
	require.Equal(t, pageHTML, string(saved))
}

func TestReaderExtractDoesNotArchiveOnSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{state: &PageState{
		StatusCode: http.StatusOK,
		FinalURL:   "https://example.com/weather-models",
		HTML:       articleHTML,
	}}
	snapshots := archivemem.New()

	e := NewReaderExtractor(runner, testReaderConfig(), snapshots, zap.NewNop())
	result := e.Extract(context.Background(), "https://example.com/weather-models")

	require.Equal(t, extract.StatusSuccess, result.Status)
	require.Zero(t, snapshots.Len())
}

func TestReaderExtractDownloadPage(t *testing.T) {
	t.Parallel()

	page := strings.Replace(articleHTML, "<footer>Copyright</footer>",
		`<div class="downloads"><a href="https://mega.nz/file/abc123">Mirror</a></div>
		 <p>password: skyfall</p><footer>Copyright</footer>`, 1)

	runner := &fakeRunner{state: &PageState{
		StatusCode: http.StatusOK,
		FinalURL:   "https://example.com/weather-models",
		HTML:       page,
	}}

	e := NewReaderExtractor(runner, testReaderConfig(), nil, zap.NewNop())
	result := e.Extract(context.Background(), "https://example.com/weather-models")

	require.Equal(t, extract.StatusSuccess, result.Status)
	require.Contains(t, result.Content, "Download Links")
	require.Contains(t, result.Content, "https://mega.nz/file/abc123")
	require.Contains(t, result.Content, "Password: skyfall")
}
