package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen       = ":8080"
	defaultHealthPath       = "/healthz"
	defaultReadyPath        = "/readyz"
	defaultSnapshotPath     = "/snapshot"
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultNATSSubject      = "farmalert.snapshot"
	defaultStateBucket      = "farmalert"
	defaultEvaluateSeconds  = 300
	defaultUnreadRefreshSec = 30
	defaultNotifyTimeoutSec = 10
	defaultRetryInitialMS   = 500
	defaultRetryMaxMS       = 60000
	defaultTelegramAPIBase  = "https://api.telegram.org"
	defaultMaxSnapshotBytes = 2 << 20

	// ServiceModeNATS keeps NATS-backed state and ingest settings.
	ServiceModeNATS = "nats"
	// ServiceModeSingle runs with in-memory state and no NATS dependencies.
	ServiceModeSingle = "single"
)

// Config holds service runtime settings.
// Params: TOML sections from one file or a merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	State   StateConfig   `toml:"state"`
	Ingest  IngestConfig  `toml:"ingest"`
	Notify  NotifyConfig  `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: name, runtime mode, and driver intervals.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name                string `toml:"name"`
	Mode                string `toml:"mode"`
	EvaluateIntervalSec int    `toml:"evaluate_interval_sec"`
	UnreadRefreshSec    int    `toml:"unread_refresh_sec"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// StateConfig contains the JetStream KV persistence backend settings.
// Params: server URLs, bucket name, and bucket creation policy.
// Returns: state backend options; ignored in single mode.
type StateConfig struct {
	URL               []string `toml:"url"`
	Bucket            string   `toml:"bucket"`
	AllowCreateBucket bool     `toml:"allow_create_bucket"`
}

// IngestConfig defines inbound snapshot interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: snapshot intake runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP snapshot endpoint.
// Params: enable flag, listen/endpoints, and body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	SnapshotPath string `toml:"snapshot_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures the snapshot subject subscription.
// Params: enable flag and subject; the connection reuses state.url.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled bool   `toml:"enabled"`
	Subject string `toml:"subject"`
}

// NotifyConfig defines outbound alert delivery behavior.
// Params: per-channel transport settings.
// Returns: notification controls.
type NotifyConfig struct {
	Telegram TelegramNotifier `toml:"telegram"`
	Webhook  WebhookNotifier  `toml:"webhook"`
	Email    LoggedNotifier   `toml:"email"`
	SMS      LoggedNotifier   `toml:"sms"`
}

// NotifyRetry configures outbound delivery retries.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy for one channel.
type NotifyRetry struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// TelegramNotifier defines the Telegram push channel settings.
// Params: enabled flag, bot token, chat ID, API base URL, and retry policy.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	APIBase  string      `toml:"api_base"`
	Retry    NotifyRetry `toml:"retry"`
}

// WebhookNotifier defines the outbound webhook channel settings.
// Params: URL, method, timeout, optional static headers, and retry policy.
// Returns: webhook sender configuration.
type WebhookNotifier struct {
	Enabled    bool              `toml:"enabled"`
	URL        string            `toml:"url"`
	Method     string            `toml:"method"`
	TimeoutSec int               `toml:"timeout_sec"`
	Headers    map[string]string `toml:"headers"`
	Retry      NotifyRetry       `toml:"retry"`
}

// LoggedNotifier defines a channel that only records intended delivery.
// Email and SMS have no transport yet; enabling them logs each send.
// Params: enable flag and recipient list for the log line.
// Returns: stub channel configuration.
type LoggedNotifier struct {
	Enabled    bool     `toml:"enabled"`
	Recipients []string `toml:"recipients"`
}

// Source describes a file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type Source struct {
	File string
	Dir  string
}

// FromCLI builds a normalized source from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (Source, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return Source{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return Source{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return Source{File: filePath}, nil
	}
	return Source{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src Source) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File, &Config{})
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NormalizeServiceMode lowercases the mode and maps empty to single.
// Params: raw mode string from TOML.
// Returns: canonical mode value.
func NormalizeServiceMode(mode string) string {
	normalized := strings.ToLower(strings.TrimSpace(mode))
	if normalized == "" {
		return ServiceModeSingle
	}
	return normalized
}

// IsSupportedServiceMode reports whether the mode is known.
// Params: canonical mode value.
// Returns: true for nats and single.
func IsSupportedServiceMode(mode string) bool {
	return mode == ServiceModeNATS || mode == ServiceModeSingle
}

// loadFile decodes one TOML file over the given base snapshot.
// Params: file path and base config to overlay onto.
// Returns: decoded config or read/decode error.
func loadFile(path string, base *Config) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg := *base
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadDir decodes every .toml file in one directory in name order.
// Later files overlay earlier ones key by key.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		merged, err = loadFile(file, &merged)
		if err != nil {
			return Config{}, err
		}
	}
	return merged, nil
}

// applyDefaults fills omitted config fields with safe defaults.
// Params: cfg pointer to decoded snapshot.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = "farmalert"
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.EvaluateIntervalSec <= 0 {
		cfg.Service.EvaluateIntervalSec = defaultEvaluateSeconds
	}
	if cfg.Service.UnreadRefreshSec <= 0 {
		cfg.Service.UnreadRefreshSec = defaultUnreadRefreshSec
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if cfg.Service.Mode == ServiceModeSingle {
		// Single mode always disables NATS-dependent paths regardless of user flags.
		cfg.Ingest.NATS.Enabled = false
		cfg.State.URL = nil
	} else {
		cfg.State.URL = normalizeNATSURLs(cfg.State.URL)
		if len(cfg.State.URL) == 0 {
			cfg.State.URL = []string{defaultNATSURL}
		}
		if strings.TrimSpace(cfg.State.Bucket) == "" {
			cfg.State.Bucket = defaultStateBucket
		}
		if strings.TrimSpace(cfg.Ingest.NATS.Subject) == "" {
			cfg.Ingest.NATS.Subject = defaultNATSSubject
		}
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.HealthPath) == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.ReadyPath) == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.SnapshotPath) == "" {
		cfg.Ingest.HTTP.SnapshotPath = defaultSnapshotPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxSnapshotBytes
	}
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		cfg.Ingest.HTTP.Enabled = true
	}

	if cfg.Notify.Telegram.APIBase == "" {
		cfg.Notify.Telegram.APIBase = defaultTelegramAPIBase
	}
	fillNotifyRetryDefaults(&cfg.Notify.Telegram.Retry)
	if cfg.Notify.Webhook.Method == "" {
		cfg.Notify.Webhook.Method = "POST"
	}
	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultNotifyTimeoutSec
	}
	fillNotifyRetryDefaults(&cfg.Notify.Webhook.Retry)
}

// fillNotifyRetryDefaults normalizes retry policy fields for one channel.
// Params: retry policy pointer.
// Returns: policy defaults applied in place.
func fillNotifyRetryDefaults(retry *NotifyRetry) {
	if retry == nil {
		return
	}
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = defaultRetryInitialMS
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = defaultRetryMaxMS
	}
}

// normalizeNATSURLs trims and drops empty URL entries.
// Params: raw URL list from TOML.
// Returns: normalized list.
func normalizeNATSURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// validateConfig validates the full runtime configuration.
// Params: cfg snapshot to validate.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	mode := NormalizeServiceMode(cfg.Service.Mode)
	if !IsSupportedServiceMode(mode) {
		return fmt.Errorf("service.mode has unsupported value %q", cfg.Service.Mode)
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		return errors.New("ingest.http.listen is required")
	}
	if mode == ServiceModeNATS && len(cfg.State.URL) == 0 {
		return errors.New("state.url is required in nats mode")
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when telegram is enabled")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required when telegram is enabled")
		}
	}
	if cfg.Notify.Webhook.Enabled && strings.TrimSpace(cfg.Notify.Webhook.URL) == "" {
		return errors.New("notify.webhook.url is required when webhook is enabled")
	}
	return nil
}
