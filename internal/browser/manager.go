// Package browser owns the single shared headless Chrome process. It
// launches lazily, closes the browser after an idle period, and recycles it
// once a request-count ceiling is reached, always waiting for in-flight
// tasks to drain first.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/clipvault/extractor/internal/clock"
	"github.com/clipvault/extractor/internal/metrics"
)

// Config controls the browser lifecycle.
type Config struct {
	// ExecPath overrides the Chrome binary location; empty means autodetect.
	ExecPath string
	// UserAgent overrides the browser-wide user agent.
	UserAgent string
	// IdleClose is how long the browser may sit unused before being closed.
	IdleClose time.Duration
	// RecycleAfter is the request-count ceiling that forces a restart the
	// next time the manager is idle.
	RecycleAfter int
}

// Allocator hands out the shared browser allocator context. Extractors open
// their own chromedp contexts (isolated per-task) against it and never close
// the allocator itself.
type Allocator interface {
	Acquire(ctx context.Context) (*Lease, error)
}

// Lease is one task's hold on the shared browser. Release must be called
// when the task's browsing context is closed.
type Lease struct {
	alloc   context.Context
	release func()
}

// Context returns the allocator context to open a chromedp context against.
func (l *Lease) Context() context.Context {
	return l.alloc
}

// Release returns the lease to the manager. Idempotent.
func (l *Lease) Release() {
	if l.release != nil {
		l.release()
		l.release = nil
	}
}

// launchFunc starts a browser allocator. Tests substitute a fake.
type launchFunc func(cfg Config) (context.Context, context.CancelFunc, error)

// Manager implements Allocator over a lazily launched exec allocator.
// Invariant: at most one live allocator exists at any time, and it is only
// closed while no lease is outstanding.
type Manager struct {
	mu           sync.Mutex
	cfg          Config
	clk          clock.Clock
	logger       *zap.Logger
	launch       launchFunc
	alloc        context.Context
	allocCancel  context.CancelFunc
	requestCount int
	inFlight     int
	idleTimer    *time.Timer
	lastUsedAt   time.Time
}

// NewManager creates a Manager. The browser is not launched until the first
// Acquire.
func NewManager(cfg Config, clk clock.Clock, logger *zap.Logger) *Manager {
	if cfg.IdleClose <= 0 {
		cfg.IdleClose = time.Minute
	}
	if cfg.RecycleAfter <= 0 {
		cfg.RecycleAfter = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		clk:    clk,
		logger: logger,
		launch: launchExecAllocator,
	}
}

// Acquire returns a lease on the shared browser, launching it if needed.
// A dead allocator (crashed or disconnected Chrome) is swept and replaced
// transparently.
func (m *Manager) Acquire(ctx context.Context) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alloc != nil && m.alloc.Err() != nil {
		m.logger.Warn("browser allocator died, resetting", zap.Error(m.alloc.Err()))
		m.closeLocked("disconnected")
	}

	if m.alloc == nil {
		alloc, cancel, err := m.launch(m.cfg)
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		m.alloc = alloc
		m.allocCancel = cancel
		m.requestCount = 0
		metrics.ObserveBrowserLaunch()
		m.logger.Info("browser launched",
			zap.String("exec_path", m.cfg.ExecPath),
			zap.Int("recycle_after", m.cfg.RecycleAfter),
		)
	}

	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	m.requestCount++
	m.inFlight++
	m.lastUsedAt = m.clk.Now()

	var once sync.Once
	return &Lease{
		alloc: m.alloc,
		release: func() {
			once.Do(m.releaseLease)
		},
	}, nil
}

func (m *Manager) releaseLease() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight--
	if m.inFlight > 0 {
		return
	}

	if m.alloc != nil && m.requestCount >= m.cfg.RecycleAfter {
		m.closeLocked("recycle")
		metrics.ObserveBrowserRecycle()
		return
	}
	m.armIdleTimerLocked()
}

func (m *Manager) armIdleTimerLocked() {
	if m.alloc == nil {
		return
	}
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(m.cfg.IdleClose, m.idleCheck)
}

func (m *Manager) idleCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight > 0 || m.alloc == nil {
		return
	}
	m.logger.Info("closing idle browser",
		zap.Duration("idle_close", m.cfg.IdleClose),
		zap.Time("last_used", m.lastUsedAt),
	)
	m.closeLocked("idle")
}

// closeLocked tears down the allocator. Callers hold m.mu and guarantee no
// lease is outstanding (except the disconnect sweep, where the allocator is
// already dead).
func (m *Manager) closeLocked(reason string) {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.alloc = nil
	m.allocCancel = nil
	m.requestCount = 0
	m.logger.Debug("browser closed", zap.String("reason", reason))
}

// Close shuts the browser down immediately. Intended for process shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alloc != nil {
		m.closeLocked("shutdown")
	}
}

// launchExecAllocator starts headless Chrome with memory-constrained and
// stealth flags. The new headless mode shares the headed rendering path,
// which trips far fewer bot detectors.
func launchExecAllocator(cfg Config) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("accept-lang", "en-US,en"),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	alloc, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return alloc, cancel, nil
}
