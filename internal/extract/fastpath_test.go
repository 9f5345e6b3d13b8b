package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/config"
)

func newTestFastpath(t *testing.T, timeoutMs int) *Fastpath {
	t.Helper()
	return NewFastpath(config.FastpathConfig{
		TimeoutMs: timeoutMs,
		UserAgent: "testbot/1.0",
	}, zap.NewNop())
}

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFastpathFetchAcceptsRichMetadata(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><head>
		<title>Fallback Title</title>
		<meta property="og:title" content="OG Title">
		<meta property="og:image" content="/images/card.png">
		<meta name="description" content="A plain description">
		<link rel="shortcut icon" href="/fav.ico">
	</head><body></body></html>`)

	fp := newTestFastpath(t, 5000)
	result, reason := fp.Fetch(context.Background(), srv.URL)

	require.Empty(t, reason)
	require.NotNil(t, result)
	require.Equal(t, "OG Title", result.Title)
	require.Equal(t, srv.URL+"/images/card.png", result.Image)
	require.Equal(t, "A plain description", result.Description)
	require.Equal(t, srv.URL+"/fav.ico", result.Favicon)
	require.Equal(t, StatusSuccess, result.ScrapeStatus)
}

func TestFastpathFetchRejectsMissingTitle(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><head>
		<meta property="og:image" content="https://cdn.example.com/a.png">
	</head><body></body></html>`)

	fp := newTestFastpath(t, 5000)
	result, reason := fp.Fetch(context.Background(), srv.URL)

	require.Nil(t, result)
	require.Equal(t, ReasonMissingTitle, reason)
}

func TestFastpathFetchRejectsTitleOnlyPage(t *testing.T) {
	t.Parallel()

	srv := serveHTML(t, `<html><head><title>Just a title</title></head><body></body></html>`)

	fp := newTestFastpath(t, 5000)
	result, reason := fp.Fetch(context.Background(), srv.URL)

	require.Nil(t, result)
	require.Equal(t, ReasonMissingImageDesc, reason)
}

func TestFastpathFetchReportsUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	fp := newTestFastpath(t, 5000)
	result, reason := fp.Fetch(context.Background(), srv.URL)

	require.Nil(t, result)
	require.Equal(t, ReasonFetchError, reason)
}

func TestFastpathFetchHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fp := newTestFastpath(t, 5000)
	result, reason := fp.Fetch(ctx, srv.URL)

	require.Nil(t, result)
	require.Equal(t, ReasonCanceled, reason)
}

func TestFastpathSendsConfiguredUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>T</title><meta name="description" content="d"></head></html>`)
	}))
	t.Cleanup(srv.Close)

	fp := newTestFastpath(t, 5000)
	result, reason := fp.Fetch(context.Background(), srv.URL)

	require.Empty(t, reason)
	require.NotNil(t, result)
	require.Equal(t, "testbot/1.0", gotUA)
}
