// Package api exposes the HTTP interface for the extraction service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/extract"
	"github.com/clipvault/extractor/internal/metrics"
	"github.com/clipvault/extractor/internal/proxy"
)

// Scraper is the extraction engine behind the scrape endpoints.
type Scraper interface {
	SmartScrape(ctx context.Context, url string) extract.ScrapeResult
	ReaderScrape(ctx context.Context, url string) extract.ReaderContentResult
}

// ImageProxy fetches remote images on behalf of the client UI.
type ImageProxy interface {
	Fetch(ctx context.Context, rawURL string) (*proxy.Result, error)
}

// Server wires HTTP handlers to the extraction engine.
type Server struct {
	router  chi.Router
	scraper Scraper
	images  ImageProxy
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(scraper Scraper, images ImageProxy, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scraper: scraper,
		images:  images,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(120 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scrape", s.scrape)
		r.Post("/reader", s.reader)
		r.Get("/proxy/image", s.proxyImage)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The browser launches lazily, so readiness only asserts the
	// process is serving.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	target, ok := s.decodeTarget(w, r)
	if !ok {
		return
	}
	result := s.scraper.SmartScrape(r.Context(), target)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) reader(w http.ResponseWriter, r *http.Request) {
	target, ok := s.decodeTarget(w, r)
	if !ok {
		return
	}
	result := s.scraper.ReaderScrape(r.Context(), target)
	writeJSON(w, http.StatusOK, result)
}

// decodeTarget parses the request body and validates the target URL.
// Extraction results always come back 200 with the outcome in the
// body; only malformed requests produce HTTP errors.
func (s *Server) decodeTarget(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return "", false
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return "", false
	}
	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be absolute http or https")
		return "", false
	}
	return target, true
}

func (s *Server) proxyImage(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}

	result, err := s.images.Fetch(r.Context(), target)
	if err != nil {
		var perr *proxy.Error
		if errors.As(err, &perr) {
			metrics.ObserveProxyRejection(perr.Code)
			writeJSON(w, perr.Status, map[string]string{
				"error": perr.Message,
				"code":  perr.Code,
			})
			return
		}
		writeError(w, http.StatusBadGateway, "image fetch failed")
		return
	}
	defer func() {
		if closeErr := result.Body.Close(); closeErr != nil {
			s.logger.Warn("proxy body close failed", zap.Error(closeErr))
		}
	}()

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Body); err != nil {
		// Headers are gone; all we can do is log the broken stream.
		s.logger.Warn("proxy stream interrupted", zap.Error(err))
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", RequestID(r.Context())),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

// RequestID returns the request ID stored by the middleware, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
