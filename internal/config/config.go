package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CaptureConfig holds the configuration for the external capture tool.
type CaptureConfig struct {
	Tool       string   `yaml:"tool"`        // capture binary, default "tshark"
	Interface  string   `yaml:"interface"`   // capture interface, default "any"
	Port       int      `yaml:"port"`        // UDP port of the monitored DHT traffic
	Filter     string   `yaml:"filter"`      // optional BPF filter override
	Window     string   `yaml:"window"`      // capture window duration
	Grace      string   `yaml:"grace"`       // extra time before the tool is killed
	TopTalkers int      `yaml:"top_talkers"` // max entries in a window's top-talker list
	LocalIPs   []string `yaml:"local_ips"`   // override for direction classification
}

// SchedulerConfig holds the configuration for the sampling loop.
type SchedulerConfig struct {
	Interval string `yaml:"interval"`
}

// StoreConfig holds the configuration for the SQLite metric store.
type StoreConfig struct {
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"` // time horizon, empty disables time-based pruning
	MaxRows   int64  `yaml:"max_rows"`  // per-table row cap, 0 disables
}

// TrackerConfig holds the thresholds for the node tracker heuristic.
type TrackerConfig struct {
	MinWindows  int     `yaml:"min_windows"`
	MinLifetime string  `yaml:"min_lifetime"`
	MinBytes    uint64  `yaml:"min_bytes"`
	MinPackets  uint64  `yaml:"min_packets"`
	MinScore    float64 `yaml:"min_score"`
	Limit       int     `yaml:"limit"`
}

// APIConfig holds the configuration for the HTTP API server.
type APIConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	PasswordHash string `yaml:"password_hash"` // SHA3-512 hex, empty disables auth
	JWTSecret    string `yaml:"jwt_secret"`
	TokenTTL     string `yaml:"token_ttl"`
}

// ProcessConfig names the local process watched by the health endpoint.
type ProcessConfig struct {
	WatchName string `yaml:"watch_name"`
}

// NATSConfig holds the configuration for the NATS export sink.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ExportConfig groups the export sinks.
type ExportConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// SMTPConfig holds the configuration for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"` // comma-separated recipients
}

// TelegramConfig holds the configuration for the Telegram notifier.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// AlerterConfig holds the alert rules and notification channels.
type AlerterConfig struct {
	Enabled         bool           `yaml:"enabled"`
	CheckInterval   string         `yaml:"check_interval"`
	StaleAfter      string         `yaml:"stale_after"`       // alert when the newest window is older than this
	ZeroPeerWindows int            `yaml:"zero_peer_windows"` // alert after this many consecutive empty windows
	DiskPercent     float64        `yaml:"disk_percent"`      // alert when disk usage exceeds this
	AIAnalysis      bool           `yaml:"ai_analysis"`
	SMTP            SMTPConfig     `yaml:"smtp"`
	Telegram        TelegramConfig `yaml:"telegram"`
}

// AIConfig holds the configuration for the OpenAI-compatible analyzer.
type AIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Capture   CaptureConfig   `yaml:"capture"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Store     StoreConfig     `yaml:"store"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	API       APIConfig       `yaml:"api"`
	Process   ProcessConfig   `yaml:"process"`
	Export    ExportConfig    `yaml:"export"`
	Alerter   AlerterConfig   `yaml:"alerter"`
	AI        AIConfig        `yaml:"ai"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Capture.Tool == "" {
		c.Capture.Tool = "tshark"
	}
	if c.Capture.Interface == "" {
		c.Capture.Interface = "any"
	}
	if c.Capture.Port == 0 {
		c.Capture.Port = 4000
	}
	if c.Capture.Window == "" {
		c.Capture.Window = "60s"
	}
	if c.Capture.Grace == "" {
		c.Capture.Grace = "10s"
	}
	if c.Capture.TopTalkers == 0 {
		c.Capture.TopTalkers = 10
	}
	if c.Scheduler.Interval == "" {
		c.Scheduler.Interval = "60s"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/dhtspectra.db"
	}
	if c.Tracker.MinWindows == 0 {
		c.Tracker.MinWindows = 20
	}
	if c.Tracker.MinLifetime == "" {
		c.Tracker.MinLifetime = "10m"
	}
	if c.Tracker.MinBytes == 0 {
		c.Tracker.MinBytes = 200_000
	}
	if c.Tracker.MinPackets == 0 {
		c.Tracker.MinPackets = 500
	}
	if c.Tracker.MinScore == 0 {
		c.Tracker.MinScore = 0.2
	}
	if c.Tracker.Limit == 0 {
		c.Tracker.Limit = 20
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = "0.0.0.0:8080"
	}
	if c.API.TokenTTL == "" {
		c.API.TokenTTL = "24h"
	}
	if c.Alerter.CheckInterval == "" {
		c.Alerter.CheckInterval = "5m"
	}
}

// validate parses every duration field once so that malformed values fail at
// startup rather than at first use.
func (c *Config) validate() error {
	durations := map[string]string{
		"capture.window":         c.Capture.Window,
		"capture.grace":          c.Capture.Grace,
		"scheduler.interval":     c.Scheduler.Interval,
		"tracker.min_lifetime":   c.Tracker.MinLifetime,
		"api.token_ttl":          c.API.TokenTTL,
		"alerter.check_interval": c.Alerter.CheckInterval,
	}
	if c.Store.Retention != "" {
		durations["store.retention"] = c.Store.Retention
	}
	if c.Alerter.StaleAfter != "" {
		durations["alerter.stale_after"] = c.Alerter.StaleAfter
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	if c.Capture.Port < 1 || c.Capture.Port > 65535 {
		return fmt.Errorf("capture.port %d out of range", c.Capture.Port)
	}
	if c.Capture.TopTalkers < 1 {
		return fmt.Errorf("capture.top_talkers must be positive")
	}
	if c.API.PasswordHash != "" && c.API.JWTSecret == "" {
		return fmt.Errorf("api.jwt_secret is required when api.password_hash is set")
	}
	return nil
}
