// Package config loads and validates extraction engine configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Fastpath FastpathConfig `mapstructure:"fastpath"`
	Reader   ReaderConfig   `mapstructure:"reader"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Events   EventsConfig   `mapstructure:"events"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BrowserConfig governs the shared headless browser lifecycle.
type BrowserConfig struct {
	ExecPath         string `mapstructure:"exec_path"`
	UserAgent        string `mapstructure:"user_agent"`
	IdleCloseSeconds int    `mapstructure:"idle_close_seconds"`
	RecycleAfter     int    `mapstructure:"recycle_after"`
}

// QueueConfig bounds browser-driven extraction work.
type QueueConfig struct {
	Concurrency   int `mapstructure:"concurrency"`
	TaskTimeoutMs int `mapstructure:"task_timeout_ms"`
}

// FastpathConfig controls the browser-free metadata fetch.
type FastpathConfig struct {
	TimeoutMs int    `mapstructure:"timeout_ms"`
	UserAgent string `mapstructure:"user_agent"`
}

// ReaderConfig tunes reader-mode content extraction.
type ReaderConfig struct {
	NavTimeoutMs      int `mapstructure:"nav_timeout_ms"`
	ReadyProbeMs      int `mapstructure:"ready_probe_ms"`
	MinParagraphs     int `mapstructure:"min_paragraphs"`
	MinBodyTextLength int `mapstructure:"min_body_text_length"`
}

// ProxyConfig governs the SSRF-safe image proxy.
type ProxyConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRedirects   int    `mapstructure:"max_redirects"`
	UserAgent      string `mapstructure:"user_agent"`
}

// ArchiveConfig selects where rendered-page snapshots are stored.
// Provider is one of "none", "local", "memory", or "gcs".
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig selects the scrape-outcome event publisher.
// Provider is one of "none" or "pubsub".
type EventsConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLIPVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.idle_close_seconds", 60)
	v.SetDefault("browser.recycle_after", 50)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.task_timeout_ms", 45000)
	v.SetDefault("fastpath.timeout_ms", 5000)
	v.SetDefault("fastpath.user_agent", "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)")
	v.SetDefault("reader.nav_timeout_ms", 30000)
	v.SetDefault("reader.ready_probe_ms", 2000)
	v.SetDefault("reader.min_paragraphs", 5)
	v.SetDefault("reader.min_body_text_length", 600)
	v.SetDefault("proxy.timeout_seconds", 20)
	v.SetDefault("proxy.max_redirects", 5)
	v.SetDefault("proxy.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("events.provider", "none")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue.concurrency must be > 0")
	}
	if c.Queue.TaskTimeoutMs <= 0 {
		return fmt.Errorf("queue.task_timeout_ms must be > 0")
	}
	if c.Fastpath.TimeoutMs <= 0 {
		return fmt.Errorf("fastpath.timeout_ms must be > 0")
	}
	if c.Browser.IdleCloseSeconds <= 0 {
		return fmt.Errorf("browser.idle_close_seconds must be > 0")
	}
	if c.Browser.RecycleAfter <= 0 {
		return fmt.Errorf("browser.recycle_after must be > 0")
	}
	if c.Proxy.MaxRedirects < 0 {
		return fmt.Errorf("proxy.max_redirects must be >= 0")
	}
	switch c.Archive.Provider {
	case "", "none", "memory", "local", "gcs":
	default:
		return fmt.Errorf("archive.provider %q is not recognized", c.Archive.Provider)
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket is required when archive.provider is gcs")
	}
	if c.Archive.Provider == "local" && c.Archive.LocalDir == "" {
		return fmt.Errorf("archive.local_dir is required when archive.provider is local")
	}
	switch c.Events.Provider {
	case "", "none", "pubsub":
	default:
		return fmt.Errorf("events.provider %q is not recognized", c.Events.Provider)
	}
	if c.Events.Provider == "pubsub" && (c.Events.ProjectID == "" || c.Events.TopicName == "") {
		return fmt.Errorf("events.project_id and events.topic_name are required when events.provider is pubsub")
	}
	return nil
}

// TaskTimeout returns the per-task timeout as a duration.
func (c QueueConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutMs) * time.Millisecond
}

// Timeout returns the fast-path timeout as a duration.
func (c FastpathConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// IdleClose returns the browser idle-close duration.
func (c BrowserConfig) IdleClose() time.Duration {
	return time.Duration(c.IdleCloseSeconds) * time.Second
}

// NavTimeout returns the reader navigation timeout as a duration.
func (c ReaderConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutMs) * time.Millisecond
}

// ReadyProbe returns the per-heuristic readiness probe budget.
func (c ReaderConfig) ReadyProbe() time.Duration {
	return time.Duration(c.ReadyProbeMs) * time.Millisecond
}

// Timeout returns the proxy fetch timeout as a duration.
func (c ProxyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
